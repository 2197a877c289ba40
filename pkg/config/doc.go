// Package config provides configuration for the spawnpool CLI and its
// simulation harness.
//
// # Key Features
//
//   - Config: one structure with log, metrics, tracing, spawner and
//     simulation sections
//   - Environment variable substitution with ${VAR_NAME} syntax
//   - Defaults from NewDefault, overridden by whatever the file sets
//   - Validate reports the first invalid field as an ErrorTypeConfig error
//
// # Usage
//
//	cfg, err := config.LoadFile("spawnpool.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Environment Variable Substitution
//
//	# spawnpool.yaml
//	name: ${RUN_NAME}
//	metrics:
//	  listen_addr: ${METRICS_ADDR}
//	simulation:
//	  frames: 600
//	  prototypes:
//	    - name: Bullet
//	      prewarm: 32
//	      spawn_per_frame: 8
//	      lifetime: 4
//
// Flag and SPAWNPOOL_* environment overrides are layered on top by the CLI
// using viper; this package only deals with the file.
package config
