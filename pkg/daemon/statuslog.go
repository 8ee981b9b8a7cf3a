package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/pkg/session"
)

const statusLogTimeout = 5 * time.Second

// StatSource is what the status log samples.
type StatSource interface {
	Status() session.Status
	SceneStat(ctx context.Context) (string, error)
}

// StatusLog appends one tab separated line per tick:
//
//	<RFC3339 time>	<session id>	<scene stat>	<state>
type StatusLog struct {
	path   string
	src    StatSource
	parser cron.Parser
	now    func() time.Time

	mu      sync.Mutex
	c       *cron.Cron
	entry   cron.EntryID
	running bool
}

func NewStatusLog(path string, src StatSource) *StatusLog {
	return &StatusLog{
		path:   path,
		src:    src,
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		now:    time.Now,
	}
}

// Schedule sets the cron expression driving the log. An empty expression
// disables it.
func (s *StatusLog) Schedule(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c != nil && s.entry != 0 {
		s.c.Remove(s.entry)
		s.entry = 0
	}
	if expr == "" {
		return nil
	}

	sched, err := s.parser.Parse(expr)
	if err != nil {
		return err
	}
	if s.c == nil {
		s.c = cron.New(cron.WithParser(s.parser))
	}
	s.entry = s.c.Schedule(sched, cron.FuncJob(func() {
		if err := s.WriteOnce(context.Background()); err != nil {
			logrus.Errorf("failed to write status log: %v", err)
		}
	}))
	logrus.WithFields(logrus.Fields{
		"schedule": expr,
		"path":     s.path,
	}).Info("status log scheduled")
	return nil
}

func (s *StatusLog) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil || s.running {
		return
	}
	s.c.Start()
	s.running = true
}

func (s *StatusLog) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil || !s.running {
		return
	}
	<-s.c.Stop().Done()
	s.running = false
}

// WriteOnce samples the source and appends a line.
func (s *StatusLog) WriteOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, statusLogTimeout)
	defer cancel()

	st := s.src.Status()
	stat, err := s.src.SceneStat(ctx)
	if err != nil {
		logrus.Warnf("scene stat unavailable: %v", err)
		stat = "-"
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s\t%s\t%s\t%s\n", s.now().Format(time.RFC3339), st.SessionID, stat, st.State)
	return err
}
