package rtc

import (
	"github.com/pion/webrtc/v4"
)

// STUN servers for candidate gathering. No TURN by default — relayed paths
// only appear when the deployment injects its own ICE servers.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
}

// defaultConfiguration returns a PeerConnection configuration backed by the
// public STUN servers.
func defaultConfiguration() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
}

// newDataChannel creates the ordered file-transfer channel on the
// initiating side. Ordered delivery is load-bearing: chunk frames carry no
// sequence numbers, so the lane itself must preserve emission order.
func newDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	return pc.CreateDataChannel("file-transfer", &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
}
