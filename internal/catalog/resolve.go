package catalog

import (
	"errors"
	"fmt"

	"github.com/s0up4200/go-dvdinfo/internal/ifo"
	"github.com/s0up4200/go-dvdinfo/internal/logging"
)

// Resolution is the program chain a title plays.
type Resolution struct {
	Title    ifo.TitleEntry
	TitleSet int
	Chain    *ifo.ProgramChain
	// Fallback is set when the part-of-title table could not name a chain and the title set's
	// first chain was used instead. This is an approximation for multi-angle or multi-story discs.
	Fallback bool
}

var errNoParts = errors.New("title has no part-of-title entries")

// Resolve maps title n to its title set and program chain. The chain is taken from the first
// part-of-title entry; when that is unavailable the first chain of the title set is used.
func (r *Reader) Resolve(n int) (*Resolution, error) {
	vts, entry, err := r.titleSet(n)
	if err != nil {
		return nil, err
	}
	res := &Resolution{Title: entry, TitleSet: entry.TitleSet}

	parts, err := vts.PartsOfTitle(entry.TitleInSet)
	if err == nil && len(parts) == 0 {
		err = errNoParts
	}
	if err == nil {
		pgc, chainErr := vts.ProgramChain(parts[0].PGCN)
		if chainErr == nil {
			res.Chain = pgc
			return res, nil
		}
		err = chainErr
	}

	pgc, fallbackErr := vts.ProgramChain(1)
	if fallbackErr != nil {
		return nil, fmt.Errorf("%w: title %d program chain: %w", ErrNotFound, n, errors.Join(err, fallbackErr))
	}
	logging.WarnEvent(r.logger, "program chain not resolvable; using first chain of title set", "pgc_fallback",
		logging.Int(logging.FieldTitle, n),
		logging.Int(logging.FieldTitleSet, entry.TitleSet),
		logging.Error(err),
		logging.String(logging.FieldImpact, "title may play the wrong chain on multi-angle or multi-story discs"),
	)
	res.Chain = pgc
	res.Fallback = true
	return res, nil
}
