// Package coordinator connects the ESP32 fleet's MQTT topics to the game engine.
//
// Inbound topics under the configured root (default "esp32"):
//
//	<root>/connect          {"id":"..","name":"..","hp":5,"restart":false}
//	<root>/disconnect       {"id":".."}
//	<root>/<id>/response    {"ack":n} or {"guess":g,"sequence":n}
//
// Outbound challenges and results are produced by the engine on
// <root>/<id>/random and <root>/<id>/result.
//
// Malformed payloads and traffic for unknown devices are counted, logged,
// and dropped. They never reach the engine.
package coordinator
