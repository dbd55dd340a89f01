// Package mqtt wraps paho.mqtt.golang for the mqttsensor driver
// (internal/drivers/mqttsensor): broker connection management, publish
// with QoS, topic subscription with wildcards, Last Will and Testament
// for offline detection, and connection health checks.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("sensors/+/temperature", 1,
//	    func(topic string, payload []byte) error {
//	        return handleReading(topic, payload)
//	    })
//
//	client.Publish("sensors/porch/relay", []byte(`{"on":true}`), 1, false)
package mqtt
