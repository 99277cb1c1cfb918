package mqtt

import (
	"context"
	"errors"
	"io"

	mqtt "github.com/soypat/natiu-mqtt"
)

// retained so a sign that subscribes later still gets the current text.
var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, true)

// Announce connects over conn as id and publishes text to topic as a
// retained message, then closes conn.
func Announce(ctx context.Context, conn io.ReadWriteCloser, id, topic, text string) error {
	defer conn.Close()

	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 512)},
		OnPub: func(mqtt.Header, mqtt.VariablesPublish, io.Reader) error {
			return nil
		},
	})
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(id))
	if err := client.Connect(ctx, conn, &varconn); err != nil {
		return errors.New("mqtt connect: " + err.Error())
	}

	err := client.PublishPayload(pubFlags, mqtt.VariablesPublish{
		TopicName: []byte(topic),
	}, []byte(text))
	if err != nil {
		return errors.New("mqtt publish " + topic + ": " + err.Error())
	}
	return nil
}
