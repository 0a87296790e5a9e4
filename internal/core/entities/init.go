// Package entities registers the CRM entity schemas with the core registry.
// Import it for side effects wherever imports or exports run:
//
//	import _ "github.com/JonMunkholm/crmsync/internal/core/entities"
package entities

// Each entity file uses init() to register its schema.
