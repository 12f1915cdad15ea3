// Package config loads plantdesk's process configuration.
//
// Settings come from a YAML file (plantdesk.yaml). Secrets and per-site
// dataset identifiers come from the environment, which is first populated
// from a .env file when one exists. Values already present in the
// environment win over the .env file.
//
//	api:
//	  base_url: https://mir-api.52g.ai/v1
//	  workflow_id: 6a157fa1-...
//	sites:
//	  - name: GS동해전력
//	    dataset_env: DATASET_ID_DONGHAE
//	server:
//	  addr: ":8080"
//	storage:
//	  path: ./data
//	ingest:
//	  max_size_mb: 200
//	  retry:
//	    attempts: 3
//	    delay: 5s
package config
