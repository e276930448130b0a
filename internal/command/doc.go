// Package command implements the durable per-device command queue.
//
// Dashboards enqueue control commands (fan, auto mode, threshold); each
// purifier drains its pending commands in FIFO order when it reports in,
// then acknowledges them individually. Delivery is at-least-once: a peek
// does not consume, and a device that crashes mid-drain simply sees the
// same commands on its next report.
package command
