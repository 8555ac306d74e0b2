package keyboard

import (
	"math"

	"github.com/HopIT-Hub/AmpCore/internal/advancedkey"
	"github.com/HopIT-Hub/AmpCore/internal/event"
)

// MIDI sub-usage layout (DomainMIDI). No header defining the original
// MIDI_TONE_MIN/MAX-style constants was available alongside
// process_midi.c/qmk_midi.c in the retrieved source, so the concrete
// ranges below are chosen to preserve the *shape* of the original
// switch (a contiguous tone-key range, absolute-select ranges paired
// with up/down nudges for octave/transpose/velocity/channel, a block of
// named CC toggles, modulation, pitch bend) rather than reproduce exact
// numeric constants.
const (
	MIDIToneCount   uint8 = 24 // two chromatic octaves of direct tone keys
	midiToneBase    uint8 = 0
	midiOctaveDown  uint8 = midiToneBase + MIDIToneCount // 24
	midiOctaveUp    uint8 = midiOctaveDown + 1            // 25
	midiOctaveBase  uint8 = midiOctaveUp + 1               // 26
	MIDIOctaveCount uint8 = 7
	midiTransposeDown uint8 = midiOctaveBase + MIDIOctaveCount // 33
	midiTransposeUp   uint8 = midiTransposeDown + 1            // 34
	midiTransposeBase uint8 = midiTransposeUp + 1               // 35
	midiTransposeCount uint8 = 25 // -12..+12
	midiTransposeZero  uint8 = midiTransposeBase + 12
	midiVelocityDown uint8 = midiTransposeBase + midiTransposeCount // 60
	midiVelocityUp   uint8 = midiVelocityDown + 1
	midiVelocityBase uint8 = midiVelocityUp + 1
	midiVelocityCount uint8 = 16
	midiChannelDown uint8 = midiVelocityBase + midiVelocityCount
	midiChannelUp   uint8 = midiChannelDown + 1
	midiChannelBase uint8 = midiChannelUp + 1
	midiChannelCount uint8 = 16

	MIDIAllNotesOff        uint8 = midiChannelBase + midiChannelCount
	MIDISustain            uint8 = MIDIAllNotesOff + 1
	MIDIPortamento         uint8 = MIDISustain + 1
	MIDISostenuto          uint8 = MIDIPortamento + 1
	MIDISoft               uint8 = MIDISostenuto + 1
	MIDILegato             uint8 = MIDISoft + 1
	MIDIModulation         uint8 = MIDILegato + 1
	MIDIModulationSpeedDown uint8 = MIDIModulation + 1
	MIDIModulationSpeedUp   uint8 = MIDIModulationSpeedDown + 1
	MIDIPitchBendDown       uint8 = MIDIModulationSpeedUp + 1
	MIDIPitchBendUp         uint8 = MIDIPitchBendDown + 1

	// midiNoteBase marks the direct-note range: sub-usages
	// [midiNoteBase, 256) encode a raw MIDI note number (sub-usage -
	// midiNoteBase), one value per note 0..127.
	midiNoteBase uint8 = 128
)

// midiInvalidNote is MIDI_INVALID_NOTE: the tone-status sentinel for "no
// note currently sounding for this tone slot".
const midiInvalidNote int16 = -1

// refVelocity is MIDI_REF_VELOCITY: the difference magnitude (in
// normalized analog units per tick) that maps to full velocity (127)
// when an event's source is an advanced key.
const refVelocity = 0.05

// MIDISender is the set of external hooks that turn structured MIDI
// calls into wire bytes/transport sends (the qmk_midi.c boundary).
type MIDISender struct {
	NoteOn    func(channel, note, velocity uint8)
	NoteOff   func(channel, note, velocity uint8)
	CC        func(channel, controller, value uint8)
	PitchBend func(channel uint8, amount int16)
}

// MIDIConfig mirrors MIDIConfig: the live, user-adjustable MIDI state.
type MIDIConfig struct {
	Octave             uint8
	Transpose          int8
	Velocity           uint8
	Channel            uint8
	ModulationInterval uint16
}

type midiState struct {
	cfg        MIDIConfig
	toneStatus [MIDIToneCount]int16

	modulation     uint8
	modulationStep int8
	ticksSinceStep uint16
}

func newMIDIState() *midiState {
	s := &midiState{cfg: MIDIConfig{Octave: 2, Velocity: 127, ModulationInterval: 8}}
	for i := range s.toneStatus {
		s.toneStatus[i] = midiInvalidNote
	}
	return s
}

// noteFor computes the absolute MIDI note for a tone-key sub-usage,
// mirroring midi_compute_note.
func (s *midiState) noteFor(tone uint8) uint8 {
	return uint8(12*int(s.cfg.Octave) + int(tone) + int(s.cfg.Transpose))
}

func velocityFromIntensity(diff float64) uint8 {
	intensity := math.Abs(diff) / refVelocity
	if intensity > 1 {
		intensity = 1
	}
	return uint8(intensity * 127)
}

// midiEventHandler implements midi_event_handler: direct notes and the
// MIDI-collection sub-usage switch (tone keys, octave/transpose/
// velocity/channel adjustment, CC toggles, modulation, pitch bend).
func (kb *Keyboard) midiEventHandler(e event.KeyboardEvent) {
	if kb.midi == nil {
		kb.midi = newMIDIState()
	}
	s := kb.midi
	sub := e.Keycode.SubUsage()

	velocity := s.cfg.Velocity
	if ak, ok := e.Source.(*advancedkey.AdvancedKey); ok {
		velocity = velocityFromIntensity(ak.Difference)
	}

	if sub >= midiNoteBase {
		note := sub - midiNoteBase
		kb.sendNote(e.Kind, s.cfg.Channel, note, velocity)
		return
	}

	switch {
	case sub < midiOctaveDown:
		kb.toneEvent(s, sub, e.Kind, velocity)
	case sub == midiOctaveDown:
		if e.Kind == event.KeyDown && s.cfg.Octave > 0 {
			s.cfg.Octave--
		}
	case sub == midiOctaveUp:
		if e.Kind == event.KeyDown && s.cfg.Octave < MIDIOctaveCount-1 {
			s.cfg.Octave++
		}
	case sub >= midiOctaveBase && sub < midiOctaveBase+MIDIOctaveCount:
		if e.Kind == event.KeyDown {
			s.cfg.Octave = sub - midiOctaveBase
		}
	case sub == midiTransposeDown:
		if e.Kind == event.KeyDown {
			s.cfg.Transpose--
		}
	case sub == midiTransposeUp:
		if e.Kind == event.KeyDown {
			s.cfg.Transpose++
		}
	case sub >= midiTransposeBase && sub < midiTransposeBase+midiTransposeCount:
		if e.Kind == event.KeyDown {
			s.cfg.Transpose = int8(sub) - int8(midiTransposeZero)
		}
	case sub == midiVelocityDown:
		if e.Kind == event.KeyDown && s.cfg.Velocity > 0 {
			s.cfg.Velocity -= 13
		}
	case sub == midiVelocityUp:
		if e.Kind == event.KeyDown && s.cfg.Velocity < 127 {
			if s.cfg.Velocity < 115 {
				s.cfg.Velocity += 13
			} else {
				s.cfg.Velocity = 127
			}
		}
	case sub >= midiVelocityBase && sub < midiVelocityBase+midiVelocityCount:
		if e.Kind == event.KeyDown {
			s.cfg.Velocity = (sub - midiVelocityBase) * (128 / midiVelocityCount)
		}
	case sub == midiChannelDown:
		if e.Kind == event.KeyDown && s.cfg.Channel > 0 {
			s.cfg.Channel--
		}
	case sub == midiChannelUp:
		if e.Kind == event.KeyDown && s.cfg.Channel < midiChannelCount-1 {
			s.cfg.Channel++
		}
	case sub >= midiChannelBase && sub < midiChannelBase+midiChannelCount:
		if e.Kind == event.KeyDown {
			s.cfg.Channel = sub - midiChannelBase
		}
	case sub == MIDIAllNotesOff:
		if e.Kind == event.KeyDown {
			kb.cc(s.cfg.Channel, 0x7B, 0)
		}
	case sub == MIDISustain:
		kb.cc(s.cfg.Channel, 0x40, onOff(e.Kind))
	case sub == MIDIPortamento:
		kb.cc(s.cfg.Channel, 0x41, onOff(e.Kind))
	case sub == MIDISostenuto:
		kb.cc(s.cfg.Channel, 0x42, onOff(e.Kind))
	case sub == MIDISoft:
		kb.cc(s.cfg.Channel, 0x43, onOff(e.Kind))
	case sub == MIDILegato:
		kb.cc(s.cfg.Channel, 0x44, onOff(e.Kind))
	case sub == MIDIModulation:
		if e.Kind == event.KeyDown {
			s.modulationStep = 1
		} else if e.Kind == event.KeyUp {
			s.modulationStep = -1
		}
	case sub == MIDIModulationSpeedDown:
		if e.Kind == event.KeyDown {
			s.cfg.ModulationInterval++
			if s.cfg.ModulationInterval == 0 {
				s.cfg.ModulationInterval--
			}
		}
	case sub == MIDIModulationSpeedUp:
		if e.Kind == event.KeyDown && s.cfg.ModulationInterval > 0 {
			s.cfg.ModulationInterval--
		}
	case sub == MIDIPitchBendDown:
		if e.Kind == event.KeyDown {
			kb.pitchBend(s.cfg.Channel, -0x2000)
		} else if e.Kind == event.KeyUp {
			kb.pitchBend(s.cfg.Channel, 0)
		}
	case sub == MIDIPitchBendUp:
		if e.Kind == event.KeyDown {
			kb.pitchBend(s.cfg.Channel, 0x1FFF)
		} else if e.Kind == event.KeyUp {
			kb.pitchBend(s.cfg.Channel, 0)
		}
	}
}

func onOff(kind event.Kind) uint8 {
	if kind == event.KeyDown {
		return 127
	}
	return 0
}

func (kb *Keyboard) toneEvent(s *midiState, tone uint8, kind event.Kind, velocity uint8) {
	switch kind {
	case event.KeyDown:
		if s.toneStatus[tone] == midiInvalidNote {
			note := s.noteFor(tone)
			kb.sendNoteOn(s.cfg.Channel, note, velocity)
			s.toneStatus[tone] = int16(note)
		}
	case event.KeyUp:
		if note := s.toneStatus[tone]; note != midiInvalidNote {
			kb.sendNoteOff(s.cfg.Channel, uint8(note), velocity)
		}
		s.toneStatus[tone] = midiInvalidNote
	}
}

func (kb *Keyboard) sendNote(kind event.Kind, channel, note, velocity uint8) {
	switch kind {
	case event.KeyDown:
		kb.sendNoteOn(channel, note, velocity)
	case event.KeyUp:
		kb.sendNoteOff(channel, note, velocity)
	}
}

func (kb *Keyboard) sendNoteOn(channel, note, velocity uint8) {
	if kb.MIDI.NoteOn != nil {
		kb.MIDI.NoteOn(channel, note, velocity)
	}
}

func (kb *Keyboard) sendNoteOff(channel, note, velocity uint8) {
	if kb.MIDI.NoteOff != nil {
		kb.MIDI.NoteOff(channel, note, velocity)
	}
}

func (kb *Keyboard) cc(channel, controller, value uint8) {
	if kb.MIDI.CC != nil {
		kb.MIDI.CC(channel, controller, value)
	}
}

func (kb *Keyboard) pitchBend(channel uint8, amount int16) {
	if kb.MIDI.PitchBend != nil {
		kb.MIDI.PitchBend(channel, amount)
	}
}

// midiTick advances the modulation ramp one tick, mirroring midi_task's
// MIDI_ADVANCED branch (gated here on a modulation ramp being in progress
// rather than a build-time flag, since this module always compiles the
// advanced path). A ModulationInterval of 0 steps the ramp every tick.
func (kb *Keyboard) midiTick() {
	if kb.midi == nil {
		return
	}
	s := kb.midi
	if s.modulationStep == 0 {
		return
	}
	s.ticksSinceStep++
	if s.ticksSinceStep < uint16(s.cfg.ModulationInterval) {
		return
	}
	s.ticksSinceStep = 0

	kb.cc(s.cfg.Channel, 0x01, s.modulation)

	if s.modulationStep < 0 && int(s.modulation) < -int(s.modulationStep) {
		s.modulation = 0
		s.modulationStep = 0
		return
	}
	next := int(s.modulation) + int(s.modulationStep)
	if next > 127 {
		next = 127
	}
	if next < 0 {
		next = 0
	}
	s.modulation = uint8(next)
}
