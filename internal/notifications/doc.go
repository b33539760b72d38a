// Package notifications sends merge lifecycle push notifications through
// ntfy when a topic is configured, and no-ops otherwise.
package notifications
