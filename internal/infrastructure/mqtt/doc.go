// Package mqtt connects the coordinator to the device message bus.
//
// This package manages:
//   - The broker connection with auto-reconnect and subscription restore
//   - A retained coordinator status topic with Last Will and Testament
//   - The device topic scheme (connect, disconnect, random, response, result)
//   - AsyncPublisher, an ordered fire-and-forget outbound queue
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.Game.TopicRoot)
//	pub := mqtt.NewAsyncPublisher(client, byte(cfg.MQTT.QoS), cfg.MQTT.PublishQueue, logger)
//	defer pub.Close()
//
//	pub.Enqueue(topics.Challenge(id), payload)
package mqtt
