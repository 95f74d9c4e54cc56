// Package notifications delivers run events via pluggable notifiers.
//
// Two transports are available: ntfy, using the topic URL configured in
// config.toml, and MQTT, publishing JSON documents under a topic prefix. Either,
// both, or neither may be enabled; with none configured NewService returns a
// no-op. Enumerated event types cover run milestones and branch failures so the
// workflow can emit consistent messages without duplicating transport glue.
//
// All workflow code depends only on the simple Service interface.
package notifications
