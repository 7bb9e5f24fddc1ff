// Package config loads and validates urlbind.json, the project
// configuration file the urlbind CLI runs from.
//
// # Configuration File Structure
//
//	{
//	  "name": "blogfilter",
//	  "addr": ":8080",
//	  "log": {"level": "info", "format": "text"},
//	  "metrics": {"enabled": true, "path": "/metrics"},
//	  "session": {
//	    "idleTimeout": "5m",
//	    "resumeWindow": "5m",
//	    "maxSessions": 1000,
//	    "store": {"backend": "sql", "driver": "pgx", "dsn": "postgres://..."}
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Addr:", cfg.Addr)
package config
