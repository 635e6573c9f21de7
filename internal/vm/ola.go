package vm

import (
	"strand/internal/cursor"
	"strand/internal/errors"
	"strand/internal/form"
	"strand/internal/value"
	"strand/internal/varray"
	"strand/internal/vlist"
)

// olaSource is one active voice: a spawned event's per-channel output
// cursors plus the within-block sample offset it was spawned at.
type olaSource struct {
	channels []*cursor.ZIn
	offset   int
	done     bool
}

func (s *olaSource) allExhausted() bool {
	for _, c := range s.channels {
		if !c.Exhausted() {
			return false
		}
	}
	return true
}

// Ola implements the overlap-add polyphonic spawner: a lazy source of
// event templates and inter-event beat-duration hops, integrated
// against a tempo signal, producing a fixed channel count of mixed
// float output. Active sources are kept in a slice that is scanned and
// compacted each block: a source whose every channel cursor is
// exhausted is swept out.
type Ola struct {
	events   *cursor.VIn // lazy source of event templates
	hops     *cursor.ZIn // inter-event beat durations
	tempo    *cursor.ZIn
	channels int

	beat          float64
	nextEventBeat float64
	sampleClock   int64
	eventsDone    bool
	active        []*olaSource
}

// NewOla builds an Ola spawner. events must be a (possibly infinite)
// list of event templates (Forms or direct output-bearing values);
// hops is the inter-event beat-duration stream; tempo is a beats/sample
// signal.
func NewOla(events, hops, tempo value.V, channels int) *Ola {
	return &Ola{
		events:   cursor.NewVIn(events),
		hops:     cursor.NewZIn(hops),
		tempo:    cursor.NewZIn(tempo),
		channels: channels,
	}
}

// EventOutChannels extracts the per-channel Z cursors from one event
// template. A Form template must carry an `out` slot holding either a
// single Z-list (mono) or a V-list of Z-lists (one per channel). The
// slot is read as-is at spawn time: the template is not chased by the
// elapsed sample count, and no `dt` override is read. A bare
// list/value template is treated as a single-channel source directly.
//
// Exported because a top-level program's result follows the same `out`
// convention an ola event template does: a script's final stack value
// is resolved into rendered channels the same way.
func EventOutChannels(ctx vlist.Ctx, template value.V, channels int) ([]*cursor.ZIn, error) {
	var out value.V
	if template.Kind() == value.KindForm {
		f, ok := template.Ref().(*form.Form)
		if !ok {
			return nil, errors.New(errors.InternalError, "malformed form value")
		}
		v, err := f.Get("out")
		if err != nil {
			return nil, err
		}
		out = v
	} else {
		out = template
	}

	cursors := make([]*cursor.ZIn, channels)
	if out.IsList() {
		l, ok := out.Ref().(*vlist.List)
		if ok && l.ElementKind() == varray.KindV {
			// A V-list of per-channel Z-lists.
			vc := cursor.NewVIn(out)
			for i := 0; i < channels; i++ {
				chv, exhausted, err := vc.One(ctx)
				if err != nil {
					return nil, err
				}
				if exhausted {
					cursors[i] = cursor.NewZInConst(0)
					continue
				}
				cursors[i] = cursor.NewZIn(chv)
			}
			return cursors, nil
		}
	}
	// Single Z-stream (or scalar): channel 0 carries it, the rest are
	// silent.
	cursors[0] = cursor.NewZIn(out)
	for i := 1; i < channels; i++ {
		cursors[i] = cursor.NewZInConst(0)
	}
	return cursors, nil
}

// Produce runs one audio block of the five-step overlap-add algorithm,
// mixing every active voice into out (one []float64 per channel, each
// pre-sized to blockSize). It returns the number of frames actually
// produced this block (may be less than blockSize on the final,
// shrunk block).
func (o *Ola) Produce(ctx vlist.Ctx, out [][]float64, blockSize int) (int, error) {
	for ch := range out {
		for i := range out[ch] {
			out[ch][i] = 0
		}
	}

	// Step 1: integrate tempo sample by sample into beat.
	tempoBuf := make([]float64, blockSize)
	n, err := o.tempo.Fill(ctx, blockSize, tempoBuf)
	if err != nil {
		return 0, err
	}
	beatAtSample := make([]float64, n)
	for i := 0; i < n; i++ {
		beatAtSample[i] = o.beat
		o.beat += tempoBuf[i]
	}

	// Step 2: spawn every event whose beat has arrived.
	for !o.eventsDone {
		arrivalSample := -1
		for i, b := range beatAtSample {
			if b >= o.nextEventBeat {
				arrivalSample = i
				break
			}
		}
		if arrivalSample < 0 {
			break
		}
		template, exhausted, err := o.events.One(ctx)
		if err != nil {
			return 0, err
		}
		if exhausted {
			o.eventsDone = true
			break
		}
		hop, hopExhausted, err := o.hops.One(ctx)
		if err != nil {
			return 0, err
		}
		if hopExhausted {
			o.eventsDone = true
			break
		}
		chans, err := EventOutChannels(ctx, template, o.channels)
		if err != nil {
			return 0, err
		}
		o.active = append(o.active, &olaSource{channels: chans, offset: arrivalSample})
		o.nextEventBeat += hop
	}

	// Step 3: mix every active source into its output channels,
	// respecting each one's within-block start offset; track the
	// longest run any source actually produced.
	maxProduced := 0
	for _, src := range o.active {
		if src.done {
			continue
		}
		room := blockSize - src.offset
		if room <= 0 {
			continue
		}
		for ch := 0; ch < o.channels && ch < len(src.channels); ch++ {
			written, err := src.channels[ch].Mix(ctx, room, out[ch][src.offset:])
			if err != nil {
				return 0, err
			}
			if src.offset+written > maxProduced {
				maxProduced = src.offset + written
			}
		}
	}

	// Step 4: retire fully exhausted sources.
	live := o.active[:0]
	for _, src := range o.active {
		if src.allExhausted() {
			continue
		}
		live = append(live, src)
	}
	o.active = live

	// Step 5: shrink the block iff no more sources will ever spawn and
	// none remain active.
	produced := blockSize
	if o.eventsDone && len(o.active) == 0 {
		produced = maxProduced
	}
	o.sampleClock += int64(produced)
	return produced, nil
}

// Done reports whether this spawner will never produce further audio:
// the event source is exhausted and every voice it spawned has
// finished.
func (o *Ola) Done() bool { return o.eventsDone && len(o.active) == 0 }
