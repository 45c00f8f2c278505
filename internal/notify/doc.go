// Package notify delivers device-connection alerts through ntfy.
//
// The notifier is a fire-and-forget collaborator of the ingest path: it
// must never fail an event acknowledgement, so every error is logged and
// dropped. Two message shapes exist, matching how operators actually use
// the service: "unknown device" for first sightings and "tracked device"
// for devices the user has flagged.
package notify
