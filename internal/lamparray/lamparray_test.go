package lamparray

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func twoLampArray() (*Array, map[uint16]Color) {
	set := map[uint16]Color{}
	a := New(KindKeyboard, 15, 5, 0, []Location{{X: 0, Y: 0}, {X: 1, Y: 0}}, func(id uint16, c Color) {
		set[id] = c
	})
	return a, set
}

func TestAttributesReportEncodesLampCount(t *testing.T) {
	a, _ := twoLampArray()
	buf := a.AttributesReport(7)
	assert.Equal(t, uint8(7), buf[0])
	assert.EqualValues(t, 2, getUint16(buf, 1))
}

func TestLampAttributesReportCursorSaturatesAtLast(t *testing.T) {
	a, _ := twoLampArray()
	a.LampAttributesReport(8) // cursor 0 -> advances to 1
	assert.Equal(t, uint16(1), a.cursor)
	a.LampAttributesReport(8) // cursor 1 is last, stays put
	assert.Equal(t, uint16(1), a.cursor)
}

func TestSetLampAttributesIDRepositionsCursor(t *testing.T) {
	a, _ := twoLampArray()
	buf := make([]byte, 2)
	putUint16(buf, 0, 1)
	a.SetLampAttributesID(buf)
	assert.Equal(t, uint16(1), a.cursor)
}

func multiUpdatePayload(lampCount uint8, ids []uint16, colors []Color) []byte {
	buf := make([]byte, MultiUpdateSize-1) // report id stripped
	buf[0] = lampCount
	for i, id := range ids {
		putUint16(buf, 2+2*i, id)
	}
	for i, c := range colors {
		off := 18 + 4*i
		buf[off], buf[off+1], buf[off+2], buf[off+3] = c.Red, c.Green, c.Blue, c.Intensity
	}
	return buf
}

func TestSetMultipleLampsAppliesColors(t *testing.T) {
	a, set := twoLampArray()
	buf := multiUpdatePayload(2, []uint16{0, 1}, []Color{{Red: 10}, {Red: 20}})
	a.SetMultipleLamps(buf)
	assert.Equal(t, Color{Red: 10}, set[0])
	assert.Equal(t, Color{Red: 20}, set[1])
}

func TestSetMultipleLampsStopsOnSpuriousZeroID(t *testing.T) {
	a, set := twoLampArray()
	buf := multiUpdatePayload(2, []uint16{1, 0}, []Color{{Red: 20}, {Red: 99}})
	a.SetMultipleLamps(buf)
	assert.Equal(t, Color{Red: 20}, set[1])
	_, ok := set[0]
	assert.False(t, ok, "spurious trailing lamp-id-0 entry must be skipped")
}

func TestSetMultipleLampsClampsCountToMax(t *testing.T) {
	a, set := twoLampArray()
	buf := multiUpdatePayload(255, []uint16{0, 1}, []Color{{Red: 1}, {Red: 2}})
	a.SetMultipleLamps(buf) // must not read past MaxLampsPerUpdate slots
	assert.Len(t, set, 2)
}

func rangeUpdatePayload(start, end uint16, c Color) []byte {
	buf := make([]byte, RangeUpdateSize-1) // report id stripped
	putUint16(buf, 1, start)
	putUint16(buf, 3, end)
	buf[5], buf[6], buf[7], buf[8] = c.Red, c.Green, c.Blue, c.Intensity
	return buf
}

func TestSetLampRangeAppliesToContiguousIDs(t *testing.T) {
	a, set := twoLampArray()
	a.SetLampRange(rangeUpdatePayload(0, 5, Color{Blue: 255}))
	assert.Equal(t, Color{Blue: 255}, set[0])
	assert.Equal(t, Color{Blue: 255}, set[1])
	assert.Len(t, set, 2, "out-of-range ids beyond NumLamps must be dropped")
}

func TestSetLampRangeOutOfRangeStartIsNoOp(t *testing.T) {
	a, set := twoLampArray()
	a.SetLampRange(rangeUpdatePayload(5, 9, Color{Blue: 255}))
	assert.Empty(t, set)
}

func TestSetAutonomousModeTogglesHostMode(t *testing.T) {
	a, _ := twoLampArray()
	assert.False(t, a.HostMode)
	a.SetAutonomousMode(false)
	assert.True(t, a.HostMode, "autonomousMode=false means the host has claimed control")
	a.SetAutonomousMode(true)
	assert.False(t, a.HostMode)
}
