package config

// workflowSchema is the document-shape contract. Step configs are validated
// structurally here only; per-type field constraints happen when the step
// catalogue decodes each config.
const workflowSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "nodes": {
      "type": "object",
      "properties": {
        "count": {"type": "integer", "minimum": 0},
        "prefix": {"type": "string"},
        "names": {"type": "array", "items": {"type": "string"}},
        "image": {"type": "string"},
        "chain_id": {"type": "string"},
        "base_port": {"type": "integer", "minimum": 1, "maximum": 65535},
        "base_rpc_port": {"type": "integer", "minimum": 1, "maximum": 65535},
        "log_level": {"type": "string"}
      }
    },
    "remote_nodes": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["url"],
        "properties": {
          "url": {"type": "string", "minLength": 1},
          "auth": {
            "type": "object",
            "properties": {
              "username": {"type": "string"},
              "password": {"type": "string"},
              "api_key": {"type": "string"}
            }
          }
        }
      }
    },
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string", "minLength": 1},
          "name": {"type": "string"}
        }
      }
    },
    "variables": {"type": "object"},
    "restart": {"type": "boolean"},
    "stop_all_nodes": {"type": "boolean"},
    "force_pull_image": {"type": "boolean"},
    "wait_timeout": {"type": "integer", "minimum": 0},
    "workflow_timeout": {"type": "integer", "minimum": 0}
  }
}`
