package collect

import (
	"context"
	"errors"
	"testing"

	"github.com/zumanm1/netaudit/pkg/models"
)

// scriptRunner replays canned responses per command. An entry in errs
// simulates a session-level failure.
type scriptRunner struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (s *scriptRunner) Run(_ context.Context, cmd string) (string, error) {
	s.calls = append(s.calls, cmd)
	if err, ok := s.errs[cmd]; ok {
		return "", err
	}
	return s.responses[cmd], nil
}

func iosDevice() *models.DeviceRecord {
	return &models.DeviceRecord{Hostname: "R1", Address: "10.0.0.1", Platform: models.PlatformIOS}
}

func TestFor_CoversAllLayers(t *testing.T) {
	for _, layer := range models.AllLayers() {
		c, err := For(layer)
		if err != nil {
			t.Errorf("For(%v): %v", layer, err)
			continue
		}
		if c.Layer() != layer {
			t.Errorf("For(%v).Layer() = %v", layer, c.Layer())
		}
		if len(c.Commands(models.PlatformIOSXR)) == 0 {
			t.Errorf("For(%v) has no IOS-XR commands", layer)
		}
	}
}

func TestFor_UnknownLayer(t *testing.T) {
	if _, err := For(models.Layer("netflow")); err == nil {
		t.Fatal("expected error for unknown layer")
	}
}

func TestCommands_UnknownPlatformFallsBackToIOS(t *testing.T) {
	c, err := For(models.LayerBGP)
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	got := c.Commands(models.PlatformUnknown)
	want := c.Commands(models.PlatformIOS)
	if len(got) != len(want) || got[0] != want[0] {
		t.Errorf("unknown platform commands = %v, want IOS set %v", got, want)
	}
}

func TestCollect_OrderedExecution(t *testing.T) {
	c, _ := For(models.LayerBGP)
	r := &scriptRunner{responses: map[string]string{
		"show ip bgp summary":          "BGP router identifier 10.0.0.1\n10.0.0.2  4 65000 10 10 5 0 0 00:05:00 3",
		"show ip bgp vpnv4 all summary": "% BGP not active",
	}}

	result, err := c.Collect(context.Background(), r, iosDevice())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	wantOrder := c.Commands(models.PlatformIOS)
	if len(r.calls) != len(wantOrder) {
		t.Fatalf("ran %d commands, want %d", len(r.calls), len(wantOrder))
	}
	for i := range wantOrder {
		if r.calls[i] != wantOrder[i] {
			t.Errorf("calls[%d] = %q, want %q (strict ordering)", i, r.calls[i], wantOrder[i])
		}
	}

	if result.Commands[0].Kind != models.ResultSuccess {
		t.Errorf("first command kind = %v", result.Commands[0].Kind)
	}
	if result.Commands[1].Kind != models.ResultNotConfigured {
		t.Errorf("second command kind = %v, want not_configured", result.Commands[1].Kind)
	}
	if result.Failed() {
		t.Error("result with NotConfigured commands must not count as failed")
	}
}

func TestCollect_SessionErrorAbortsRemaining(t *testing.T) {
	c, _ := For(models.LayerBGP)
	r := &scriptRunner{
		responses: map[string]string{},
		errs: map[string]error{
			"show ip bgp summary": errors.New("read output R1: context deadline exceeded"),
		},
	}

	result, err := c.Collect(context.Background(), r, iosDevice())
	if err == nil {
		t.Fatal("expected session-level error")
	}
	if len(r.calls) != 1 {
		t.Errorf("ran %d commands after session failure, want 1", len(r.calls))
	}
	if len(result.Commands) != 1 {
		t.Errorf("result carries %d transcripts, want the partial 1", len(result.Commands))
	}
	if result.Commands[0].Kind != models.ResultError {
		t.Errorf("failed command kind = %v", result.Commands[0].Kind)
	}
}

func TestCollect_SummaryBGP(t *testing.T) {
	c, _ := For(models.LayerBGP)
	r := &scriptRunner{responses: map[string]string{
		"show ip bgp summary": `BGP router identifier 10.0.0.1, local AS number 65000
Neighbor        V    AS MsgRcvd MsgSent   TblVer  InQ OutQ Up/Down  State/PfxRcd
10.0.0.2        4 65000     100     101        5    0    0 01:02:03        12
10.0.0.3        4 65000       0       0        1    0    0 never    Idle`,
		"show ip bgp vpnv4 all summary": "% BGP not active",
	}}

	result, err := c.Collect(context.Background(), r, iosDevice())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := result.Summary["bgp_neighbors"]; got != "2" {
		t.Errorf("bgp_neighbors = %q, want 2", got)
	}
	if got := result.Summary["bgp_neighbors_established"]; got != "1" {
		t.Errorf("bgp_neighbors_established = %q, want 1", got)
	}
}

func TestCollect_SummaryIGP(t *testing.T) {
	c, _ := For(models.LayerIGP)
	r := &scriptRunner{responses: map[string]string{
		"show ip ospf neighbor": `Neighbor ID     Pri   State           Dead Time   Address         Interface
10.0.0.2          1   FULL/DR         00:00:35    192.168.1.2     GigabitEthernet0/0
10.0.0.3          1   INIT/-          00:00:31    192.168.1.3     GigabitEthernet0/1`,
		"show ip ospf interface brief": "Gi0/0  1  0  192.168.1.1/24  1  DR  1/1",
	}}

	result, err := c.Collect(context.Background(), r, iosDevice())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := result.Summary["ospf_neighbors"]; got != "2" {
		t.Errorf("ospf_neighbors = %q, want 2", got)
	}
	if got := result.Summary["ospf_neighbors_full"]; got != "1" {
		t.Errorf("ospf_neighbors_full = %q, want 1", got)
	}
}
