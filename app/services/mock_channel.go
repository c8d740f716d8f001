package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/amirphl/outreach-orchestrator/models"
)

// MockSubmission records a call to MockChannel.Submit
type MockSubmission struct {
	JobID   string
	Target  Target
	Content string
	Args    ChannelArgs
}

// MockChannel is an in-process adapter used for local runs and tests.
// Jobs succeed on the first poll unless a result or error is scripted.
type MockChannel struct {
	channel models.Channel

	mu          sync.Mutex
	seq         int
	submissions []MockSubmission
	results     map[string]PollResult
	submitErrs  []error
	pollErr     error
	nextResult  *PollResult
}

// NewMockChannel creates a mock adapter for ch
func NewMockChannel(ch models.Channel) *MockChannel {
	return &MockChannel{channel: ch, results: make(map[string]PollResult)}
}

func (m *MockChannel) Channel() models.Channel { return m.channel }

// FailNextSubmits queues errors returned by successive Submit calls
func (m *MockChannel) FailNextSubmits(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErrs = append(m.submitErrs, errs...)
}

// SetPollError makes every Poll return err until cleared with nil
func (m *MockChannel) SetPollError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollErr = err
}

// SetNextResult sets the result for jobs submitted from now on
func (m *MockChannel) SetNextResult(r *PollResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextResult = r
}

// SetResult overrides the result of a submitted job
func (m *MockChannel) SetResult(jobID string, r PollResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[jobID] = r
}

// Submissions returns a copy of the recorded submissions
func (m *MockChannel) Submissions() []MockSubmission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSubmission, len(m.submissions))
	copy(out, m.submissions)
	return out
}

func (m *MockChannel) Submit(ctx context.Context, target Target, content string, args ChannelArgs) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", Classify(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.submitErrs) > 0 {
		err := m.submitErrs[0]
		m.submitErrs = m.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}

	m.seq++
	jobID := fmt.Sprintf("mock-%s-%d", m.channel, m.seq)
	m.submissions = append(m.submissions, MockSubmission{JobID: jobID, Target: target, Content: content, Args: args})
	if m.nextResult != nil {
		m.results[jobID] = *m.nextResult
	} else {
		m.results[jobID] = PollResult{Status: PollStatusSuccess, Output: "ok"}
	}
	return jobID, nil
}

func (m *MockChannel) Poll(ctx context.Context, jobID string) (PollResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pollErr != nil {
		return PollResult{}, m.pollErr
	}
	r, ok := m.results[jobID]
	if !ok {
		return PollResult{}, Permanent(CodeNotFound, fmt.Errorf("unknown job %s", jobID))
	}
	return r, nil
}
