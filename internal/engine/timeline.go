package engine

import (
	"sort"

	"github.com/barberq/scheduling-core/internal/models"
	"github.com/barberq/scheduling-core/pkg/apperr"
)

// BlockType is the kind of a Timeline Builder output block, §4.3.
type BlockType string

const (
	BlockScheduled BlockType = "scheduled"
	BlockQueue     BlockType = "queue"
	BlockLunch     BlockType = "lunch"
	BlockGap       BlockType = "gap"
)

// Block is one entry of the unified timeline §4.3/glossary.
type Block struct {
	Type          BlockType
	StartMinute   int
	EndMinute     int
	AppointmentID string // empty for lunch/gap
}

func (b Block) Duration() int { return b.EndMinute - b.StartMinute }

// BuildTimeline implements §4.3's algorithm. appts must already be the
// active-status snapshot for a single (barber, date); the function is
// pure and deterministic (PR2): equal inputs produce equal outputs, no
// wall-clock reads.
func BuildTimeline(appts []models.Appointment, p Policy) ([]Block, error) {
	scheduled := make([]models.Appointment, 0, len(appts))
	queue := make([]models.Appointment, 0, len(appts))
	for _, a := range appts {
		switch a.Kind {
		case models.KindScheduled:
			scheduled = append(scheduled, a)
		case models.KindQueue:
			queue = append(queue, a)
		}
	}
	sort.Slice(scheduled, func(i, j int) bool {
		si, _ := scheduled[i].StartTimeMinute()
		sj, _ := scheduled[j].StartTimeMinute()
		return si < sj
	})
	sort.Slice(queue, func(i, j int) bool {
		ri, rj := queue[i].Priority.PriorityRank(), queue[j].Priority.PriorityRank()
		if ri != rj {
			return ri < rj
		}
		pi, pj := 0, 0
		if queue[i].QueuePosition != nil {
			pi = *queue[i].QueuePosition
		}
		if queue[j].QueuePosition != nil {
			pj = *queue[j].QueuePosition
		}
		return pi < pj
	})

	blocks := make([]Block, 0, len(scheduled)+len(queue)+2)
	cursor := p.WorkingStartMin
	queueIdx := 0
	lunchEmitted := false

	fillGap := func(gapStart, gapEnd int) int {
		c := gapStart
		for queueIdx < len(queue) {
			q := queue[queueIdx]
			if c+q.TotalDurationMin > gapEnd {
				break
			}
			blocks = append(blocks, Block{
				Type:          BlockQueue,
				StartMinute:   c,
				EndMinute:     c + q.TotalDurationMin,
				AppointmentID: q.ID,
			})
			c += q.TotalDurationMin
			queueIdx++
		}
		if c < gapEnd {
			blocks = append(blocks, Block{Type: BlockGap, StartMinute: c, EndMinute: gapEnd})
		}
		return gapEnd
	}

	emitLunchIfDue := func(boundary int) error {
		if lunchEmitted || cursor > p.LunchStartMin {
			return nil
		}
		if boundary <= p.LunchStartMin {
			return nil
		}
		fillGap(cursor, p.LunchStartMin)
		blocks = append(blocks, Block{Type: BlockLunch, StartMinute: p.LunchStartMin, EndMinute: p.LunchEndMin})
		cursor = p.LunchEndMin
		lunchEmitted = true
		return nil
	}

	for _, sch := range scheduled {
		start, _ := sch.StartTimeMinute()
		end := start + sch.TotalDurationMin

		if !lunchEmitted && p.LunchStartMin >= cursor && p.LunchStartMin < start {
			if err := emitLunchIfDue(start); err != nil {
				return nil, err
			}
		}
		if CrossesLunch(start, sch.TotalDurationMin, p.LunchStartMin, p.LunchEndMin) {
			return nil, apperr.Wrap(apperr.CodeInternal, "corrupt snapshot: scheduled appointment crosses lunch", nil)
		}
		if end > p.WorkingEndMin {
			return nil, apperr.Wrap(apperr.CodeInternal, "corrupt snapshot: scheduled appointment exceeds working hours", nil)
		}
		if cursor < start {
			fillGap(cursor, start)
		}
		blocks = append(blocks, Block{
			Type:          BlockScheduled,
			StartMinute:   start,
			EndMinute:     end,
			AppointmentID: sch.ID,
		})
		cursor = end
	}

	if !lunchEmitted {
		if err := emitLunchIfDue(p.WorkingEndMin); err != nil {
			return nil, err
		}
	}

	if cursor < p.WorkingEndMin {
		fillGap(cursor, p.WorkingEndMin)
	}

	return blocks, nil
}
