package rankcommunities

import "placement-workers/internal/common/validation"

// inputSchema covers the variables this task reads. Other process variables are allowed.
var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["communities", "clientRequirement"],
  "properties": {
    "communities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["communityId"],
        "properties": {
          "communityId": {"type": "integer"}
        }
      }
    },
    "clientRequirement": {
      "type": "object",
      "properties": {
        "budget": {"type": "number"},
        "timeline": {"type": "string", "enum": ["", "immediate", "near-term", "flexible"]},
        "locationPreference": {"type": "string"},
        "specialNeeds": {"type": ["object", "null"]}
      }
    },
    "weights": {
      "type": "object",
      "additionalProperties": {"type": "number", "minimum": 0}
    }
  }
}`)
