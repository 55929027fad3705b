// Package pipeline implements the forward pipeline (spec §4.10, component
// C10): for each ingress event, extract sentences, feed the assembler,
// dedupe, TAG-wrap, and hand off to the forwarder.
package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyan85/aismixer/internal/assembler"
	"github.com/iliyan85/aismixer/internal/dedup"
	"github.com/iliyan85/aismixer/internal/forwarder"
	"github.com/iliyan85/aismixer/internal/ingress"
	"github.com/iliyan85/aismixer/internal/sentence"
	"github.com/iliyan85/aismixer/internal/spolicy"
	"github.com/iliyan85/aismixer/internal/tagcodec"
)

// groupKey identifies one in-flight multipart group for the
// MultipartSContext (spec §3, §4.6 step 3): the `s:` observed on an early
// fragment, kept available for fragments that arrive without their own.
type groupKey struct {
	assemblerKey string
	gid          string
}

// Pipeline owns the assembler, deduplicator and s-cache exclusively (spec
// §5: "single-writer (the forward pipeline)"). A deployment wanting
// parallelism must run one Pipeline per shard of assembler_key space.
type Pipeline struct {
	Assembler *assembler.Assembler
	Dedup     *dedup.Deduplicator
	SCache    *spolicy.Cache
	Forwarder *forwarder.Forwarder
	StationID string
	Debug     bool
	Log       logrus.FieldLogger

	groupCtx map[groupKey]string
}

// New builds a Pipeline. log is a logrus.FieldLogger rather than a concrete
// *logrus.Logger so a caller can pass a *logrus.Entry carrying a run-id
// field (e.g. from main's uuid-tagged startup logger) without the pipeline
// caring which it got.
func New(asm *assembler.Assembler, dd *dedup.Deduplicator, sc *spolicy.Cache, fwd *forwarder.Forwarder, stationID string, debug bool, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		Assembler: asm,
		Dedup:     dd,
		SCache:    sc,
		Forwarder: fwd,
		StationID: stationID,
		Debug:     debug,
		Log:       log,
		groupCtx:  make(map[groupKey]string),
	}
}

// Run drains events until the channel is closed.
func (p *Pipeline) Run(events <-chan ingress.Event) {
	for ev := range events {
		p.handle(ev)
	}
}

func (p *Pipeline) handle(ev ingress.Event) {
	if p.Debug {
		p.Log.WithFields(logrus.Fields{"kind": ev.Kind, "assembler_key": ev.AssemblerKey}).Debug("pipeline: input")
	}
	for _, slice := range sentence.ExtractIndices(ev.RawLine, false) {
		p.handleSentence(ev, slice)
	}
}

func (p *Pipeline) handleSentence(ev ingress.Event, slice sentence.Slice) {
	var tag tagcodec.Block
	if slice.TagStart >= 0 {
		tag = tagcodec.ParseBeforeIndex(ev.RawLine, slice.Start)
	}

	triggeringS, _ := tag.Get("s")
	if g, ok := tag.Get("g"); ok {
		if gid, ok := groupID(g); ok {
			if s, ok := tag.Get("s"); ok && s != "" {
				p.groupCtx[groupKey{ev.AssemblerKey, gid}] = s
			}
		}
	}

	complete, ok := p.Assembler.Feed(ev.AssemblerKey, slice.Sentence)
	if !ok {
		return
	}
	p.emitGroup(ev, complete, triggeringS)
}

// emitGroup wraps and forwards every sentence of a just-completed multipart
// group (or a single-fragment "group" of size 1), per spec §4.10 steps 4-5.
func (p *Pipeline) emitGroup(ev ingress.Event, complete []string, triggeringS string) {
	gid := ""
	for i, full := range complete {
		if !p.Dedup.IsUnique(full) {
			continue
		}
		fields := strings.Split(full, ",")
		if len(fields) < 7 {
			continue // the assembler already validated this, but stay defensive
		}
		total, _ := strconv.Atoi(fields[1])
		current, _ := strconv.Atoi(fields[2])
		seq := fields[3]
		if gid == "" {
			gid = seq
		}

		incomingS := triggeringS
		if incomingS == "" {
			incomingS = p.groupCtx[groupKey{ev.AssemblerKey, gid}]
		}
		sVal := spolicy.Choose(p.StationID, ev.AliasForS, incomingS, ev.RemoteIP)
		p.SCache.Touch(sVal)

		var header string
		if total <= 1 {
			header = tagcodec.Emit([]tagcodec.Pair{
				{Key: "c", Value: nowUnix()},
				{Key: "s", Value: sVal},
			})
		} else {
			triplet := fmt.Sprintf("%d-%d-%s", current, total, seq)
			if i == 0 {
				header = tagcodec.Emit([]tagcodec.Pair{
					{Key: "c", Value: nowUnix()},
					{Key: "s", Value: sVal},
					{Key: "g", Value: triplet},
				})
			} else {
				header = tagcodec.Emit([]tagcodec.Pair{{Key: "g", Value: triplet}})
			}
		}

		wrapped := header + full + "\r\n"
		if p.Debug {
			p.Log.WithField("line", wrapped).Debug("pipeline: output")
		}
		p.Forwarder.Send([]byte(wrapped))

		if total > 1 && current == total {
			delete(p.groupCtx, groupKey{ev.AssemblerKey, gid})
		}
	}
}

// groupID splits a `part-total-gid` triplet and returns the gid portion,
// which may itself contain '-' (spec §3 "g tag").
func groupID(g string) (string, bool) {
	parts := strings.SplitN(g, "-", 3)
	if len(parts) != 3 {
		return "", false
	}
	return parts[2], true
}

func nowUnix() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}
