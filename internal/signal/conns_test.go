package signal

import (
	"testing"

	"github.com/nerrad567/farlink-core/internal/auth"
)

func TestRegistry_AdmitAndLookup(t *testing.T) {
	reg := NewRegistry(nil)
	tr := &mockTransport{}

	conn := reg.Admit(deviceIdentity("dev-1"), tr)
	if conn.ConnID == "" {
		t.Error("ConnID empty, want generated instance id")
	}

	got, ok := reg.Lookup(auth.RoleDevice, "dev-1")
	if !ok {
		t.Fatal("Lookup() not found after Admit")
	}
	if got != conn {
		t.Error("Lookup() returned a different connection instance")
	}
}

func TestRegistry_AdmitSupersedesAndClosesPrior(t *testing.T) {
	reg := NewRegistry(nil)
	oldTr := &mockTransport{}
	newTr := &mockTransport{}

	old := reg.Admit(deviceIdentity("dev-1"), oldTr)
	replacement := reg.Admit(deviceIdentity("dev-1"), newTr)

	if !oldTr.isClosed() {
		t.Error("superseded transport not closed")
	}
	if newTr.isClosed() {
		t.Error("replacement transport closed, want open")
	}
	if old.ConnID == replacement.ConnID {
		t.Error("replacement shares ConnID with superseded instance")
	}

	got, _ := reg.Lookup(auth.RoleDevice, "dev-1")
	if got != replacement {
		t.Error("Lookup() returned superseded connection")
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestRegistry_AdmitDeviceResetsReconnect(t *testing.T) {
	canceller := &mockCanceller{}
	reg := NewRegistry(canceller)

	reg.Admit(deviceIdentity("dev-1"), &mockTransport{})
	reg.Admit(dashboardIdentity("client-1"), &mockTransport{})

	resets := canceller.resetCalls()
	if len(resets) != 1 || resets[0] != "dev-1" {
		t.Errorf("resets = %v, want exactly [dev-1]", resets)
	}
}

func TestRegistry_RemoveMatchesInstance(t *testing.T) {
	reg := NewRegistry(nil)

	stale := reg.Admit(deviceIdentity("dev-1"), &mockTransport{})
	current := reg.Admit(deviceIdentity("dev-1"), &mockTransport{})

	// The stale instance's deferred cleanup must not evict the replacement.
	if reg.Remove(stale) {
		t.Error("Remove(stale) = true, want false")
	}
	if _, ok := reg.Lookup(auth.RoleDevice, "dev-1"); !ok {
		t.Fatal("current connection evicted by stale removal")
	}

	if !reg.Remove(current) {
		t.Error("Remove(current) = false, want true")
	}
	if _, ok := reg.Lookup(auth.RoleDevice, "dev-1"); ok {
		t.Error("connection still present after Remove")
	}
}

func TestRegistry_LookupPeerPrefersDevices(t *testing.T) {
	reg := NewRegistry(nil)

	devConn := reg.Admit(deviceIdentity("peer-1"), &mockTransport{})
	reg.Admit(dashboardIdentity("peer-1"), &mockTransport{})

	got, ok := reg.LookupPeer("peer-1")
	if !ok {
		t.Fatal("LookupPeer() not found")
	}
	if got != devConn {
		t.Error("LookupPeer() resolved dashboard, want device namespace first")
	}

	if _, ok := reg.LookupPeer("nobody"); ok {
		t.Error("LookupPeer(nobody) found, want miss")
	}
}

func TestRegistry_ListByRole(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Admit(deviceIdentity("dev-1"), &mockTransport{})
	reg.Admit(deviceIdentity("dev-2"), &mockTransport{})
	reg.Admit(dashboardIdentity("client-1"), &mockTransport{})

	if n := len(reg.ListByRole(auth.RoleDevice)); n != 2 {
		t.Errorf("devices = %d, want 2", n)
	}
	if n := len(reg.ListByRole(auth.RoleDashboard)); n != 1 {
		t.Errorf("dashboards = %d, want 1", n)
	}
}

func TestRegistry_BroadcastToDashboards(t *testing.T) {
	reg := NewRegistry(nil)

	devTr := &mockTransport{}
	dash1 := &mockTransport{}
	dash2 := &mockTransport{}
	failing := &mockTransport{sendErr: ErrTransportClosed}

	reg.Admit(deviceIdentity("dev-1"), devTr)
	reg.Admit(dashboardIdentity("client-1"), dash1)
	reg.Admit(dashboardIdentity("client-2"), dash2)
	reg.Admit(dashboardIdentity("client-3"), failing)

	reg.BroadcastToDashboards(NewConnectionError("test"))

	if len(devTr.sentMessages()) != 0 {
		t.Error("device transport received dashboard broadcast")
	}
	if len(dash1.sentMessages()) != 1 || len(dash2.sentMessages()) != 1 {
		t.Error("dashboard transports did not each receive one message")
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := NewRegistry(nil)
	tr1 := &mockTransport{}
	tr2 := &mockTransport{}
	reg.Admit(deviceIdentity("dev-1"), tr1)
	reg.Admit(dashboardIdentity("client-1"), tr2)

	reg.CloseAll()

	if reg.Count() != 0 {
		t.Errorf("Count() = %d after CloseAll, want 0", reg.Count())
	}
	if !tr1.isClosed() || !tr2.isClosed() {
		t.Error("transports not closed by CloseAll")
	}
}

func TestConnection_Graceful(t *testing.T) {
	conn := &Connection{Identity: deviceIdentity("dev-1")}
	if conn.Graceful() {
		t.Error("Graceful() = true before MarkGraceful")
	}
	conn.MarkGraceful()
	if !conn.Graceful() {
		t.Error("Graceful() = false after MarkGraceful")
	}
}
