package phpindex

import (
	"sync"
	"sync/atomic"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// parserPool hands out PHP parsers. Parsers are reset on return so no tree
// outlives its indexing run.
type parserPool struct {
	lang   *sitter.Language
	pool   sync.Pool
	leased atomic.Int64
}

func newParserPool(lang *sitter.Language) *parserPool {
	return &parserPool{lang: lang}
}

func (p *parserPool) get() (*sitter.Parser, error) {
	sp, _ := p.pool.Get().(*sitter.Parser)
	if sp == nil {
		sp = sitter.NewParser()
	}
	if err := sp.SetLanguage(p.lang); err != nil {
		sp.Close()
		return nil, err
	}
	p.leased.Add(1)
	return sp, nil
}

func (p *parserPool) put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.leased.Add(-1)
	sp.Reset()
	p.pool.Put(sp)
}

// inUse reports parsers currently leased.
func (p *parserPool) inUse() int64 {
	return p.leased.Load()
}
