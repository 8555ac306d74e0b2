package keyboard

import (
	"github.com/HopIT-Hub/AmpCore/internal/store"
)

// Role selects which side of a multi-board link a Nexus plays.
type Role uint8

const (
	NexusMaster Role = iota
	NexusSlave
)

// SlaveConfig is one slave's owned key-id range [Begin, Begin+Length) on
// the master side, mirroring nexus.c's slave_configs table.
type SlaveConfig struct {
	Begin  uint16
	Length uint16
}

// NexusFrame is one streamed key sample: the key's raw/value reading
// plus a full snapshot of the sender's key bitmap, mirroring
// PacketNexus. Wire encoding is the caller's concern (internal/packet);
// Nexus only shapes the data.
type NexusFrame struct {
	Index  uint16
	Raw    float64
	Value  float64
	Bitmap []uint32
}

// NexusConfigFrame carries one advanced key's normalized config from
// master to slave during initial config streaming.
type NexusConfigFrame struct {
	Index  uint16
	Config store.AdvancedKeyConfigNormalized
}

// Nexus implements the multi-board pass-through link (nexus.c):
// master polls each slave-owned key id from a received bitmap snapshot;
// slave streams its own keys' raw/value and full bitmap to the master,
// one key per tick, round-robin.
//
// Key-id mapping is simplified from the source: a slave-owned id is
// assumed to equal the physical key id directly (no separate
// raw-channel/analog-index indirection), since this module has no
// analog-channel layer distinct from key id.
type Nexus struct {
	Role   Role
	Slaves []SlaveConfig

	// SendToSlave streams one frame to the named slave (master role).
	SendToSlave func(slaveID uint8, frame NexusFrame) error
	// SendConfig streams one config frame to the named slave at init
	// (master role), mirroring nexus_config_slave.
	SendConfig func(slaveID uint8, frame NexusConfigFrame) error
	// SendToMaster streams one frame up to the master (slave role).
	SendToMaster func(frame NexusFrame) error

	slaveBitmap []uint32 // one word per slave, low Length bits significant
	slaveFlags  []bool
	counter     uint16
}

// NewNexus builds a Nexus for the given role and slave ranges. Slaves is
// ignored (and may be nil) on the slave side.
func NewNexus(role Role, slaves []SlaveConfig) *Nexus {
	return &Nexus{
		Role:        role,
		Slaves:      slaves,
		slaveBitmap: make([]uint32, len(slaves)),
		slaveFlags:  make([]bool, len(slaves)),
	}
}

// ConfigSlaves streams every advanced key owned by each slave's id range
// to that slave, once, at startup — mirroring nexus_init/
// nexus_config_slave.
func (n *Nexus) ConfigSlaves(kb *Keyboard) {
	if n.SendConfig == nil {
		return
	}
	for slaveID, cfg := range n.Slaves {
		count := uint16(0)
		for _, k := range kb.AdvancedKeys {
			if k.ID < cfg.Begin || k.ID >= cfg.Begin+cfg.Length {
				continue
			}
			wire := store.NormalizeAdvancedKeyConfig(k.Config)
			_ = n.SendConfig(uint8(slaveID), NexusConfigFrame{Index: count, Config: wire})
			count++
		}
	}
}

// process runs the master-side pass-through: for every slave-owned key
// id, drive keyboard.PressDigital with the bit most recently received
// from that slave's bitmap snapshot, mirroring nexus_process.
func (n *Nexus) process(kb *Keyboard) {
	for slaveID, cfg := range n.Slaves {
		for j := uint16(0); j < cfg.Length; j++ {
			id := cfg.Begin + j
			key, ok := kb.keyByID[id]
			if !ok {
				continue
			}
			bit := n.slaveBitmap[slaveID]&(1<<j) != 0
			kb.PressDigital(key, bit, kb.DebouncePressTicks, kb.DebounceReleaseTicks)
		}
	}
}

// ReceiveFromSlave feeds one inbound frame from slaveID into the
// master's view: the sender's live raw/value for the streamed key id
// (if it maps to a local advanced key) and the sender's full bitmap
// snapshot, mirroring nexus_process_buffer's master branch.
func (n *Nexus) ReceiveFromSlave(kb *Keyboard, slaveID uint8, frame NexusFrame) {
	if int(slaveID) >= len(n.Slaves) {
		return
	}
	n.slaveFlags[slaveID] = true
	cfg := n.Slaves[slaveID]
	if len(frame.Bitmap) > 0 {
		n.slaveBitmap[slaveID] = frame.Bitmap[0]
	}
	id := cfg.Begin + frame.Index
	if key, ok := kb.advancedKeyByID[id]; ok {
		key.Raw = frame.Raw
		key.Value = frame.Value
	}
}

// slaveTick runs the slave-side branch of Tick: update every local
// key's raw/state without full debounce+event dispatch (the master owns
// debounced reporting for pass-through keys), then stream one key's
// sample to the master, round-robin, mirroring nexus_send_report.
func (n *Nexus) slaveTick(kb *Keyboard) {
	for _, k := range kb.AdvancedKeys {
		raw := 0.0
		if kb.ReadRaw != nil {
			raw = kb.ReadRaw(k.ID)
		}
		k.UpdateRaw(raw)
		kb.setBitmapBit(k.ID, k.Key.State)
	}
	for _, k := range kb.Keys {
		state := false
		if kb.ReadDigital != nil {
			state = kb.ReadDigital(k.ID)
		}
		k.State = state
		kb.setBitmapBit(k.ID, state)
	}

	if n.SendToMaster == nil || len(kb.Bitmap) == 0 {
		return
	}
	total := uint16(len(kb.Bitmap)) * 32
	if total == 0 {
		return
	}
	frame := NexusFrame{Index: n.counter, Bitmap: append([]uint32(nil), kb.Bitmap...)}
	if key, ok := kb.advancedKeyByID[n.counter]; ok {
		frame.Raw, frame.Value = key.Raw, key.Value
	}
	_ = n.SendToMaster(frame)
	n.counter++
	if n.counter >= total {
		n.counter = 0
	}
}
