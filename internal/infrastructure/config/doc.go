// Package config handles loading and validating smart home core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The home section declares the rooms and devices created at startup:
//
//	home:
//	  name: "Дом"
//	  rooms:
//	    - name: "комната1"
//	      capacity: 4
//	      devices:
//	        - name: "розетка"
//	          kind: outlet
//	          address: "192.168.1.40:9555"
//	        - name: "термометр"
//	          kind: sensor
//	          address: "0.0.0.0:4000"
//
// Sensitive values (MQTT password, InfluxDB token) should be set via
// environment variables rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Home.Name)
package config
