package merge

import (
	"testing"
	"time"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func withData(v byte) [512]byte {
	var d [512]byte
	for i := range d {
		d[i] = v
	}
	return d
}

func key(proto Protocol, ip string) SourceKey {
	return SourceKey{Protocol: proto, IP: ip}
}

// S1: two HTP sources, highest value per channel wins.
func TestMergeHTPTakesHighest(t *testing.T) {
	p := NewPortContext()
	now := time.UnixMicro(1_000_000)
	p.now = fixedClock(&now)

	if err := p.Push(Update{Key: key(ProtocolArtNet, "10.0.0.1"), Data: withData(100)}); err != nil {
		t.Fatalf("push a: %v", err)
	}
	if err := p.Push(Update{Key: key(ProtocolSACN, "10.0.0.2"), Data: withData(200)}); err != nil {
		t.Fatalf("push b: %v", err)
	}

	out, active := p.Output()
	if !active {
		t.Fatalf("expected active output")
	}
	if out[0] != 200 {
		t.Fatalf("expected HTP max 200, got %d", out[0])
	}
}

// S2: LTP takes the lowest value per channel.
func TestMergeLTPTakesLowest(t *testing.T) {
	p := NewPortContext()
	now := time.UnixMicro(1_000_000)
	p.now = fixedClock(&now)
	p.Configure(ModeLTP, time.Second)

	p.Push(Update{Key: key(ProtocolArtNet, "10.0.0.1"), Data: withData(100)})
	p.Push(Update{Key: key(ProtocolSACN, "10.0.0.2"), Data: withData(50)})

	out, active := p.Output()
	if !active {
		t.Fatalf("expected active output")
	}
	if out[0] != 50 {
		t.Fatalf("expected LTP min 50, got %d", out[0])
	}
}

// LAST takes the whole frame from whichever source updated most recently.
func TestMergeLastTakesMostRecent(t *testing.T) {
	p := NewPortContext()
	now := time.UnixMicro(1_000_000)
	p.now = fixedClock(&now)
	p.Configure(ModeLast, time.Second)

	p.Push(Update{Key: key(ProtocolArtNet, "10.0.0.1"), Data: withData(10)})
	now = now.Add(time.Millisecond)
	p.Push(Update{Key: key(ProtocolSACN, "10.0.0.2"), Data: withData(20)})

	out, _ := p.Output()
	if out[0] != 20 {
		t.Fatalf("expected last-writer frame (20), got %d", out[0])
	}

	// The earlier source updating again becomes the new "last".
	now = now.Add(time.Millisecond)
	p.Push(Update{Key: key(ProtocolArtNet, "10.0.0.1"), Data: withData(30)})
	out, _ = p.Output()
	if out[0] != 30 {
		t.Fatalf("expected frame to follow the latest writer (30), got %d", out[0])
	}
}

// BACKUP is sticky: the first valid source is promoted to primary and
// stays primary across further pushes from a second source, only
// releasing the role on timeout.
func TestMergeBackupSticky(t *testing.T) {
	p := NewPortContext()
	now := time.UnixMicro(1_000_000)
	p.now = fixedClock(&now)
	p.Configure(ModeBackup, 500*time.Millisecond)

	primary := key(ProtocolArtNet, "10.0.0.1")
	secondary := key(ProtocolSACN, "10.0.0.2")

	p.Push(Update{Key: primary, Data: withData(10)})
	out, _ := p.Output()
	if out[0] != 10 {
		t.Fatalf("expected primary's frame, got %d", out[0])
	}

	p.Push(Update{Key: secondary, Data: withData(99)})
	out, _ = p.Output()
	if out[0] != 10 {
		t.Fatalf("expected primary to remain sticky, got %d", out[0])
	}

	// Stop pushing primary; keep secondary alive past primary's
	// timeout so the failover is to a still-live source, not an
	// empty table.
	now = now.Add(200 * time.Millisecond)
	p.Push(Update{Key: secondary, Data: withData(99)})
	now = now.Add(400 * time.Millisecond)

	out, active := p.Output()
	if !active {
		t.Fatalf("expected secondary to take over")
	}
	if out[0] != 99 {
		t.Fatalf("expected secondary's frame after failover, got %d", out[0])
	}
	if p.GetStats().BackupSwitches != 1 {
		t.Fatalf("expected one backup switch, got %d", p.GetStats().BackupSwitches)
	}
}

// DISABLE takes whichever valid source was admitted first and ignores
// the rest entirely (no merge across channels).
func TestMergeDisableFirstValid(t *testing.T) {
	p := NewPortContext()
	now := time.UnixMicro(1_000_000)
	p.now = fixedClock(&now)
	p.Configure(ModeDisable, time.Second)

	p.Push(Update{Key: key(ProtocolArtNet, "10.0.0.1"), Data: withData(5)})
	p.Push(Update{Key: key(ProtocolSACN, "10.0.0.2"), Data: withData(250)})

	out, _ := p.Output()
	if out[0] != 5 {
		t.Fatalf("expected first-admitted source's frame (5), got %d", out[0])
	}
}

// Invariant: a port never tracks more than MaxSources simultaneous
// valid sources; the (MaxSources+1)th distinct sender is rejected.
func TestPushFullTableRejectsNewSource(t *testing.T) {
	p := NewPortContext()
	now := time.UnixMicro(1_000_000)
	p.now = fixedClock(&now)

	for i := 0; i < MaxSources; i++ {
		k := key(ProtocolArtNet, ipFor(i))
		if err := p.Push(Update{Key: k, Data: withData(1)}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	err := p.Push(Update{Key: key(ProtocolArtNet, ipFor(MaxSources)), Data: withData(1)})
	if err != ErrFull {
		t.Fatalf("expected ErrFull, got %v", err)
	}
}

// Invariant: a timed-out slot is reclaimed by the next distinct sender
// instead of returning ErrFull.
func TestTimedOutSlotIsReclaimed(t *testing.T) {
	p := NewPortContext()
	now := time.UnixMicro(1_000_000)
	p.now = fixedClock(&now)
	p.Configure(ModeHTP, 100*time.Millisecond)

	for i := 0; i < MaxSources; i++ {
		p.Push(Update{Key: key(ProtocolArtNet, ipFor(i)), Data: withData(1)})
	}

	now = now.Add(200 * time.Millisecond)

	if err := p.Push(Update{Key: key(ProtocolArtNet, ipFor(MaxSources)), Data: withData(1)}); err != nil {
		t.Fatalf("expected reclaimed slot to admit new source: %v", err)
	}
}

// Invariant: Blackout zeroes output and clears all sources, and a
// subsequent Output call reports inactive until a new Push arrives.
func TestBlackoutZeroesOutput(t *testing.T) {
	p := NewPortContext()
	now := time.UnixMicro(1_000_000)
	p.now = fixedClock(&now)

	p.Push(Update{Key: key(ProtocolArtNet, "10.0.0.1"), Data: withData(255)})
	p.Blackout()

	out, active := p.Output()
	if active {
		t.Fatalf("expected inactive output after blackout")
	}
	for _, b := range out {
		if b != 0 {
			t.Fatalf("expected all-zero output after blackout")
		}
	}
}

// Invariant: Output is idempotent between Push calls -- calling it
// repeatedly with no new input does not change the result.
func TestOutputIdempotentBetweenPushes(t *testing.T) {
	p := NewPortContext()
	now := time.UnixMicro(1_000_000)
	p.now = fixedClock(&now)

	p.Push(Update{Key: key(ProtocolArtNet, "10.0.0.1"), Data: withData(42)})

	first, _ := p.Output()
	second, _ := p.Output()
	if first != second {
		t.Fatalf("expected identical output across repeated calls with no new input")
	}
}

// Terminate (sACN Stream Terminated) drops a source immediately,
// without waiting for its timeout to elapse.
func TestTerminateDropsSourceImmediately(t *testing.T) {
	p := NewPortContext()
	now := time.UnixMicro(1_000_000)
	p.now = fixedClock(&now)

	k := key(ProtocolSACN, "10.0.0.5")
	p.Push(Update{Key: k, Data: withData(77)})
	p.Terminate(k)

	out, active := p.Output()
	if active {
		t.Fatalf("expected no active sources after termination")
	}
	for _, b := range out {
		if b != 0 {
			t.Fatalf("expected zeroed output after sole source terminated")
		}
	}
}

func ipFor(i int) string {
	return [...]string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5"}[i]
}
