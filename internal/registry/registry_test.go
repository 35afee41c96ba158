package registry

import "testing"

func TestDefaultRegistryHasInitialize(t *testing.T) {
	r := Default()
	spec, ok := r.Lookup("initialize")
	if !ok {
		t.Fatal("expected initialize to be registered")
	}
	if spec.Notification {
		t.Fatal("initialize must not be a notification")
	}
	if spec.RequiresReady {
		t.Fatal("initialize must not require Ready (it establishes Ready)")
	}
}

func TestDefaultRegistryNotifications(t *testing.T) {
	r := Default()
	for _, m := range []string{"initialized", "cancel"} {
		spec, ok := r.Lookup(m)
		if !ok {
			t.Fatalf("expected %q to be registered", m)
		}
		if !spec.Notification {
			t.Fatalf("%q should be a notification", m)
		}
	}
}

func TestDefaultRegistryUnknownMethod(t *testing.T) {
	r := Default()
	if _, ok := r.Lookup("bogus/method"); ok {
		t.Fatal("expected bogus/method to be unrecognized")
	}
}

func TestRegisterAfterFreezePanics(t *testing.T) {
	r := New()
	r.Freeze()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic registering after Freeze")
		}
	}()
	r.Register(MethodSpec{Method: "x"})
}

func TestDefaultRegistryTimeouts(t *testing.T) {
	r := Default()

	slow, ok := r.Lookup("tools/call")
	if !ok || slow.Timeout != SlowTimeout {
		t.Fatalf("tools/call timeout = %v, want %v", slow.Timeout, SlowTimeout)
	}

	fast, ok := r.Lookup("resources/read")
	if !ok || fast.Timeout != FastTimeout {
		t.Fatalf("resources/read timeout = %v, want %v", fast.Timeout, FastTimeout)
	}

	cancel, ok := r.Lookup("cancel")
	if !ok || cancel.Timeout != 0 {
		t.Fatalf("cancel (a notification) should carry no dispatcher-enforced timeout, got %v", cancel.Timeout)
	}
}

func TestRequiresReadyMethods(t *testing.T) {
	r := Default()
	for _, m := range []string{"tools/list", "tools/call", "resources/read", "prompts/get", "sampling/createMessage"} {
		spec, ok := r.Lookup(m)
		if !ok {
			t.Fatalf("expected %q registered", m)
		}
		if !spec.RequiresReady {
			t.Fatalf("%q should require Ready", m)
		}
	}
	for _, m := range []string{"ping", "initialize"} {
		spec, ok := r.Lookup(m)
		if !ok {
			t.Fatalf("expected %q registered", m)
		}
		if spec.RequiresReady {
			t.Fatalf("%q should not require Ready", m)
		}
	}
}
