// Package mqtt wraps paho.mqtt.golang for the bridge: connection
// management with Last Will and Testament, publish/subscribe with
// validation, and automatic re-subscription after reconnects.
package mqtt
