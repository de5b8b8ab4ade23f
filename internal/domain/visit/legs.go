package visit

import "strings"

type LegKind string

const (
	LegRoomEntry LegKind = "room_entry"
	LegBedSlot   LegKind = "bed_slot"
	LegRoomExit  LegKind = "room_exit"
)

type Leg struct {
	Kind     LegKind `json:"kind"`
	Location string  `json:"location"`
}

// LegPlan maps an assignment onto catalogue names. Templates may reference
// {room} and {bed}; an empty template drops the leg.
type LegPlan struct {
	EntryTemplate string `yaml:"entry_template"`
	BedTemplate   string `yaml:"bed_template"`
	ExitTemplate  string `yaml:"exit_template"`
}

func DefaultLegPlan() LegPlan {
	return LegPlan{
		EntryTemplate: "{room}",
		BedTemplate:   "{bed}",
		ExitTemplate:  "{room}_exit",
	}
}

func (p LegPlan) Legs(a Assignment) []Leg {
	r := strings.NewReplacer("{room}", a.Room, "{bed}", a.Bed)
	out := make([]Leg, 0, 3)
	for _, step := range []struct {
		kind LegKind
		tmpl string
	}{
		{LegRoomEntry, p.EntryTemplate},
		{LegBedSlot, p.BedTemplate},
		{LegRoomExit, p.ExitTemplate},
	} {
		if strings.TrimSpace(step.tmpl) == "" {
			continue
		}
		name := NormalizeName(r.Replace(step.tmpl))
		if name == "" {
			continue
		}
		out = append(out, Leg{Kind: step.kind, Location: name})
	}
	return out
}

// Command builds the navigation command for a leg. Bed slots need the
// precise docking mode; door points only need to be reached approximately.
func (l Leg) Command(target Pose, backendRetries int) NavigationCommand {
	precision := PrecisionApproximate
	if l.Kind == LegBedSlot {
		precision = PrecisionPrecise
	}
	return NavigationCommand{
		Target:        target,
		YawRequired:   true,
		Precision:     precision,
		MaxRetries:    backendRetries,
		LocationLabel: l.Location,
	}
}
