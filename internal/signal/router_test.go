package signal

import (
	"testing"
)

func routerFixture(t *testing.T) (*Router, *Registry, *mockHeartbeatSink) {
	t.Helper()
	reg := NewRegistry(nil)
	sink := &mockHeartbeatSink{}
	return NewRouter(reg, sink), reg, sink
}

func TestRouter_ForwardsWithVerifiedSender(t *testing.T) {
	rt, reg, _ := routerFixture(t)

	dashTr := &mockTransport{}
	devTr := &mockTransport{}
	dash := reg.Admit(dashboardIdentity("client-1"), dashTr)
	reg.Admit(deviceIdentity("dev-1"), devTr)

	// The wire message claims to be from someone else entirely.
	rt.HandleInbound(dash, []byte(`{"type":"offer","from":"impostor","to":"dev-1","payload":{"sdp":"v=0","type":"offer"}}`))

	sent := devTr.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("device received %d messages, want 1", len(sent))
	}
	env, ok := sent[0].(Envelope)
	if !ok {
		t.Fatalf("device received %T, want Envelope", sent[0])
	}
	if env.From != "client-1" {
		t.Errorf("From = %q, want verified sender client-1", env.From)
	}
	if env.Type != TypeOffer || env.To != "dev-1" {
		t.Errorf("envelope = %+v, want offer to dev-1", env)
	}
}

func TestRouter_UnreachableTargetFailsClosed(t *testing.T) {
	rt, reg, _ := routerFixture(t)

	dashTr := &mockTransport{}
	dash := reg.Admit(dashboardIdentity("client-1"), dashTr)

	rt.HandleInbound(dash, []byte(`{"type":"offer","to":"ghost","payload":{}}`))

	sent := dashTr.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("sender received %d messages, want exactly 1 connection-error", len(sent))
	}
	ev, ok := sent[0].(ConnectionErrorEvent)
	if !ok {
		t.Fatalf("sender received %T, want ConnectionErrorEvent", sent[0])
	}
	if ev.Type != EventConnectionError {
		t.Errorf("event type = %q, want %q", ev.Type, EventConnectionError)
	}

	// Nothing is queued: the target connecting later must receive nothing.
	ghostTr := &mockTransport{}
	reg.Admit(deviceIdentity("ghost"), ghostTr)
	if len(ghostTr.sentMessages()) != 0 {
		t.Error("late-connecting target received a queued message")
	}
}

func TestRouter_DeviceTrafficQueuesHeartbeat(t *testing.T) {
	rt, reg, sink := routerFixture(t)

	devTr := &mockTransport{}
	dashTr := &mockTransport{}
	dev := reg.Admit(deviceIdentity("dev-1"), devTr)
	dash := reg.Admit(dashboardIdentity("client-1"), dashTr)

	rt.HandleInbound(dev, []byte(`{"type":"answer","to":"client-1","sdp":"v=0"}`))
	rt.HandleInbound(dash, []byte(`{"type":"offer","to":"dev-1","payload":{}}`))

	hbs := sink.heartbeats()
	if len(hbs) != 1 || hbs[0] != "dev-1" {
		t.Errorf("heartbeats = %v, want exactly [dev-1] (dashboard traffic excluded)", hbs)
	}
}

func TestRouter_DisconnectMarksGraceful(t *testing.T) {
	rt, reg, _ := routerFixture(t)

	devTr := &mockTransport{}
	dev := reg.Admit(deviceIdentity("dev-1"), devTr)

	rt.HandleInbound(dev, []byte(`{"type":"disconnect"}`))

	if !dev.Graceful() {
		t.Error("Graceful() = false after disconnect envelope")
	}
	if len(devTr.sentMessages()) != 0 {
		t.Error("untargeted disconnect produced outbound traffic")
	}
}

func TestRouter_DisconnectRelayedWhenTargeted(t *testing.T) {
	rt, reg, _ := routerFixture(t)

	devTr := &mockTransport{}
	dashTr := &mockTransport{}
	reg.Admit(deviceIdentity("dev-1"), devTr)
	dash := reg.Admit(dashboardIdentity("client-1"), dashTr)

	rt.HandleInbound(dash, []byte(`{"type":"disconnect","to":"dev-1"}`))

	if !dash.Graceful() {
		t.Error("sender not marked graceful")
	}
	if len(devTr.sentMessages()) != 1 {
		t.Error("targeted disconnect not relayed to peer")
	}
}

func TestRouter_MalformedMessageDropped(t *testing.T) {
	rt, reg, _ := routerFixture(t)

	devTr := &mockTransport{}
	dev := reg.Admit(deviceIdentity("dev-1"), devTr)

	rt.HandleInbound(dev, []byte(`{broken`))
	rt.HandleInbound(dev, []byte(`{"type":"warp-drive","to":"x"}`))

	// Protocol garbage is logged and ignored, not answered.
	if len(devTr.sentMessages()) != 0 {
		t.Error("malformed input produced outbound traffic")
	}
}

func TestRouter_SendFailureReportsToSender(t *testing.T) {
	rt, reg, _ := routerFixture(t)

	dashTr := &mockTransport{}
	dash := reg.Admit(dashboardIdentity("client-1"), dashTr)
	reg.Admit(deviceIdentity("dev-1"), &mockTransport{sendErr: ErrTransportClosed})

	rt.HandleInbound(dash, []byte(`{"type":"control-command","to":"dev-1","payload":{"action":"reboot"}}`))

	sent := dashTr.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("sender received %d messages, want 1 connection-error", len(sent))
	}
	if _, ok := sent[0].(ConnectionErrorEvent); !ok {
		t.Errorf("sender received %T, want ConnectionErrorEvent", sent[0])
	}
}
