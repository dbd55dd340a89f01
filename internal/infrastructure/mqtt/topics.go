package mqtt

import "fmt"

// TopicPrefixSystem is the base for a client's own liveness topics.
// Sensor/command topics are not namespaced by this package: the
// mqttsensor driver reads them verbatim from its device config, since
// the broker's topic layout belongs to whatever external system is
// publishing readings, not to this daemon.
const TopicPrefixSystem = "drmemd/system"

// Topics builds the handful of topics a client owns outright: its own
// online/offline status, published as a retained message and as a
// Last Will and Testament.
type Topics struct{}

// SystemStatus returns the liveness topic for one client identified by
// clientID. Status is namespaced per client, not shared under a single
// daemon-wide topic, because more than one Client can be live in the
// same process at once: each mqttsensor device instance dials its own
// broker connection with its own client ID, and a shared topic would
// have the last one to (re)connect overwrite every other instance's
// retained status and LWT.
func (Topics) SystemStatus(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixSystem, clientID)
}
