// Package bridge translates between MQTT and the Insteon network.
//
// Commands arrive as JSON on each device's configured command topic and
// turn into device operations; confirmed state changes flow back out as
// retained JSON on the device's state topic. A health reporter
// publishes periodic bridge status alongside.
package bridge
