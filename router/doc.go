// Package router addresses coordination messages. A send either targets a
// single manager, resolved through the registry, or broadcasts to every
// reachable manager except the sender with concurrent fan-out. Every sent
// message is appended to the history log before delivery.
package router
