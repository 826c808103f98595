// Package publisher writes de-duplicated Jekyll posts.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ounols/jekyll-news/internal/dedup"
	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/store"
)

// Publisher turns posts into store entries. At most one entry exists per
// identity key and an existing entry is never replaced.
type Publisher struct {
	store  store.Store
	index  dedup.Index
	layout string
	loc    *time.Location
	now    func() time.Time
	log    logger.Logger
	locks  keyedMutex
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithLayout(layout string) Option { return func(p *Publisher) { p.layout = layout } }

// WithLocation sets the zone used for post dates and filenames.
func WithLocation(loc *time.Location) Option { return func(p *Publisher) { p.loc = loc } }

func WithClock(now func() time.Time) Option { return func(p *Publisher) { p.now = now } }

func WithLogger(l logger.Logger) Option { return func(p *Publisher) { p.log = l } }

// New creates a Publisher. A nil index only relies on the store check.
func New(st store.Store, index dedup.Index, opts ...Option) *Publisher {
	if index == nil {
		index = dedup.NewMemory()
	}
	p := &Publisher{
		store:  st,
		index:  index,
		layout: "post",
		loc:    time.Local,
		now:    time.Now,
		log:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes post unless its identity key was already published or its
// filename is taken.
func (p *Publisher) Publish(ctx context.Context, post Post) domain.Outcome {
	if post.Date.IsZero() {
		post.Date = p.now()
	}
	post.Date = post.Date.In(p.loc)
	if post.OriginalTitle == "" {
		post.OriginalTitle = post.Article.Title
	}

	key := IdentityKey(post.Article.SourceID, post.Date, post.OriginalTitle)
	slug := PostSlug(post.Title, post.OriginalTitle)
	if slug == "" {
		return domain.Failed(domain.ReasonInvalidArticle, domain.StatePublishChecked,
			fmt.Errorf("empty slug for %q", truncateRunes(post.OriginalTitle, 40)))
	}
	name := FileName(post.Date, post.Profile.FilePrefix, slug)

	log := p.log.With(
		logger.String("identity_key", key),
		logger.String("file", name),
	)

	unlock := p.locks.lock(key)
	defer unlock()

	if p.index.Has(ctx, key) {
		log.Info("Article already published")
		return domain.Skipped(domain.ReasonDuplicate, domain.StatePublishChecked, nil)
	}

	if outcome, done := p.checkExisting(name, key, log); done {
		return outcome
	}

	content, err := Render(post, key, p.layout)
	if err != nil {
		return domain.Failed(domain.ReasonWriteFailed, domain.StatePublishChecked,
			fmt.Errorf("%w: %w", domain.ErrWriteFailed, err))
	}

	if err := p.store.WriteAtomic(name, content); err != nil {
		if errors.Is(err, store.ErrExists) {
			log.Warn("Post appeared during write, not overwriting")
			return domain.Skipped(domain.ReasonCollision, domain.StatePublishChecked,
				fmt.Errorf("%w: %w", domain.ErrPublishCollision, err))
		}
		log.Error("Failed to write post", logger.Error(err))
		return domain.Failed(domain.ReasonWriteFailed, domain.StatePublishChecked,
			fmt.Errorf("%w: %w", domain.ErrWriteFailed, err))
	}

	if err := p.index.Mark(ctx, key); err != nil {
		// The file is the source of truth; the next scan repairs the index.
		log.Warn("Failed to mark identity key", logger.Error(err))
	}

	log.Info("Post published")
	return domain.Published(&domain.PublishRecord{IdentityKey: key, FilePath: name})
}

func (p *Publisher) checkExisting(name, key string, log logger.Logger) (domain.Outcome, bool) {
	exists, err := p.store.Exists(name)
	if err != nil {
		return domain.Failed(domain.ReasonWriteFailed, domain.StatePublishChecked,
			fmt.Errorf("%w: %w", domain.ErrWriteFailed, err)), true
	}
	if !exists {
		return domain.Outcome{}, false
	}

	marker, err := p.store.ReadHeader(name)
	if err != nil {
		log.Warn("Existing post unreadable, treating as unmarked", logger.Error(err))
		marker = ""
	}

	switch {
	case marker == key:
		log.Info("Post already exists for this article")
		return domain.Skipped(domain.ReasonDuplicate, domain.StatePublishChecked, nil), true
	case marker != "":
		log.Warn("Filename taken by another article", logger.String("existing_id", marker))
		return domain.Skipped(domain.ReasonCollision, domain.StatePublishChecked,
			fmt.Errorf("%w: %s holds %s", domain.ErrPublishCollision, name, marker)), true
	default:
		log.Warn("Filename taken by a post without article_id")
		return domain.Skipped(domain.ReasonExistsUnmarked, domain.StatePublishChecked,
			fmt.Errorf("%w: %s has no article_id", domain.ErrPublishCollision, name)), true
	}
}

// keyedMutex serializes work per key and drops idle entries.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
