package addr

import "testing"

func TestValidIPv4(t *testing.T) {
	good := []string{"0.0.0.0", "255.255.255.255", "192.168.1.1", "10.0.0.1"}
	for _, s := range good {
		if !ValidIPv4(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}

	bad := []string{"", "256.0.0.1", "1.2.3", "1.2.3.4.5", "a.b.c.d", "1.2.3.-1", "1.2.3."}
	for _, s := range bad {
		if ValidIPv4(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestPriority(t *testing.T) {
	p, err := Priority("192.168.1.42", "255.255.255.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != 42 {
		t.Errorf("expected priority 42, got %d", p)
	}

	if _, err := Priority("not-an-ip", "255.255.255.0"); err == nil {
		t.Error("expected error for invalid address")
	}
	if _, err := Priority("192.168.1.1", "not-a-mask"); err == nil {
		t.Error("expected error for invalid netmask")
	}
}

func TestPriorityIsNetmaskSensitive(t *testing.T) {
	p1, _ := Priority("10.0.1.5", "255.255.255.0")
	p2, _ := Priority("10.0.1.5", "255.255.0.0")
	if p1 == p2 {
		t.Error("expected priority to vary with netmask")
	}
}

func TestBroadcast(t *testing.T) {
	b, err := Broadcast("192.168.1.42", "255.255.255.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != "192.168.1.255" {
		t.Errorf("expected 192.168.1.255, got %s", b)
	}
}
