package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingdesk/internal/schedule"
	"bookingdesk/internal/timeutil"
)

func block(weekday, start, end string) schedule.Block {
	b, err := schedule.NewBlock(weekday, start, end)
	if err != nil {
		panic(err)
	}
	return b
}

func TestGenerateSlots(t *testing.T) {
	tests := []struct {
		name      string
		blocks    []schedule.Block
		step      int
		wantCount int
		wantFirst string
		wantLast  string
	}{
		{
			name:      "single block thirty minute step",
			blocks:    []schedule.Block{block("tuesday", "09:00", "12:00")},
			step:      30,
			wantCount: 6,
			wantFirst: "09:00-09:30",
			wantLast:  "11:30-12:00",
		},
		{
			name:      "trailing partial slot dropped",
			blocks:    []schedule.Block{block("tuesday", "09:00", "10:50")},
			step:      30,
			wantCount: 3,
			wantFirst: "09:00-09:30",
			wantLast:  "10:00-10:30",
		},
		{
			name:      "default step when unset",
			blocks:    []schedule.Block{block("tuesday", "09:00", "10:00")},
			step:      0,
			wantCount: 4,
			wantFirst: "09:00-09:15",
			wantLast:  "09:45-10:00",
		},
		{
			name:      "step larger than block",
			blocks:    []schedule.Block{block("tuesday", "09:00", "09:45")},
			step:      60,
			wantCount: 0,
		},
		{
			name: "two blocks keep order",
			blocks: []schedule.Block{
				block("tuesday", "14:00", "15:00"),
				block("tuesday", "09:00", "10:00"),
			},
			step:      30,
			wantCount: 4,
			wantFirst: "14:00-14:30",
			wantLast:  "09:30-10:00",
		},
		{
			name:      "block ending at midnight",
			blocks:    []schedule.Block{block("friday", "23:00", "24:00")},
			step:      30,
			wantCount: 2,
			wantFirst: "23:00-23:30",
			wantLast:  "23:30-24:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateSlots(tt.blocks, tt.step)
			if len(got) != tt.wantCount {
				t.Fatalf("expected %d slots, got %d", tt.wantCount, len(got))
			}
			if tt.wantCount == 0 {
				return
			}
			if got[0].String() != tt.wantFirst {
				t.Errorf("first slot: expected %s, got %s", tt.wantFirst, got[0])
			}
			if got[len(got)-1].String() != tt.wantLast {
				t.Errorf("last slot: expected %s, got %s", tt.wantLast, got[len(got)-1])
			}
			for _, s := range got {
				if s.Status != "" {
					t.Errorf("slot %s classified before resolution", s)
				}
				if !s.InSchedule {
					t.Errorf("slot %s not marked in schedule", s)
				}
			}
		})
	}
}

func TestGenerateSlotsCoverage(t *testing.T) {
	blocks := []schedule.Block{
		block("monday", "08:00", "11:10"),
		block("monday", "13:00", "17:00"),
	}
	for _, step := range []int{10, 15, 20, 30, 45, 60, 90} {
		got := GenerateSlots(blocks, step)
		for _, s := range got {
			assert.Equal(t, step, s.EndMinute-s.StartMinute)
			inside := false
			for _, b := range blocks {
				if s.StartMinute >= int(b.Start) && s.EndMinute <= int(b.End) {
					inside = true
				}
			}
			assert.True(t, inside, "slot %s outside blocks (step %d)", s, step)
		}
	}
}

func TestGenerateGroups(t *testing.T) {
	blocks := []schedule.Block{
		block("tuesday", "09:00", "10:00"),
		block("tuesday", "14:00", "14:20"),
	}
	groups := GenerateGroups(blocks, 30)
	require.Len(t, groups, 2)
	assert.Equal(t, "09:00", groups[0].BlockStart.String())
	assert.Equal(t, "10:00", groups[0].BlockEnd.String())
	assert.Len(t, groups[0].Slots, 2)
	assert.Empty(t, groups[1].Slots)
	assert.Equal(t, GenerateSlots(blocks, 30), Flatten(groups))
}

func TestGenerateGrid(t *testing.T) {
	blocks := []schedule.Block{block("tuesday", "09:00", "10:15")}
	grid := GenerateGrid(blocks, timeutil.NewTimeOfDay(8, 0), timeutil.NewTimeOfDay(11, 0), 30)
	require.Len(t, grid, 6)

	want := []bool{false, false, true, true, false, false}
	for i, s := range grid {
		assert.Equal(t, want[i], s.InSchedule, "cell %s", s)
	}
}

func TestAvailableCount(t *testing.T) {
	s := Slot{Occupancy: Occupancy{Count: 1, Capacity: 3}}
	assert.Equal(t, 2, s.AvailableCount())
	s.Occupancy.Count = 5
	assert.Equal(t, 0, s.AvailableCount())
}
