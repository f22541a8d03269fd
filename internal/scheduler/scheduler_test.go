package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_WaitsAFullPeriodAfterAttach(t *testing.T) {
	s := New()
	var runs int
	task := s.CreateTask(func(remaining int) { runs++ })
	s.Push("t1", task)
	task.Attach(10*time.Millisecond, 0)

	start := time.Now()
	s.Loop(start)
	assert.Equal(t, 0, runs, "Attach primes the task on the first Loop pass rather than firing it")

	s.Loop(start.Add(5 * time.Millisecond))
	assert.Equal(t, 0, runs, "must not fire before a full period has elapsed since priming")

	s.Loop(start.Add(11 * time.Millisecond))
	assert.Equal(t, 1, runs)

	s.Loop(start.Add(12 * time.Millisecond))
	assert.Equal(t, 1, runs, "must not fire again before a full period elapses")

	s.Loop(start.Add(22 * time.Millisecond))
	assert.Equal(t, 2, runs)
}

func TestTask_FiniteRunsAutoDetaches(t *testing.T) {
	s := New()
	var runs int
	task := s.CreateTask(func(remaining int) { runs++ })
	s.Push("finite", task)
	task.Attach(5*time.Millisecond, 3)

	now := time.Now()
	for i := 0; i < 10; i++ {
		now = now.Add(5 * time.Millisecond)
		s.Loop(now)
	}

	assert.Equal(t, 3, runs)
	assert.False(t, task.IsAttached())
}

func TestTask_Once(t *testing.T) {
	s := New()
	var runs int
	task := s.CreateTask(func(remaining int) { runs++ })
	s.Push("once", task)
	task.Once(10 * time.Millisecond)

	now := time.Now()
	s.Loop(now)
	s.Loop(now.Add(20 * time.Millisecond))
	s.Loop(now.Add(40 * time.Millisecond))

	assert.Equal(t, 1, runs)
	assert.False(t, task.IsAttached())
}

func TestTask_Detach(t *testing.T) {
	s := New()
	var runs int
	task := s.CreateTask(func(remaining int) { runs++ })
	s.Push("d", task)
	task.Attach(time.Millisecond, 0)

	now := time.Now()
	s.Loop(now)
	s.Loop(now.Add(time.Millisecond))
	task.Detach()
	s.Loop(now.Add(time.Second))

	assert.Equal(t, 1, runs)
}

func TestAttach_ZeroPeriodIsIgnored(t *testing.T) {
	s := New()
	task := s.CreateTask(func(int) {})
	s.Push("bad", task)
	task.Attach(0, 0)

	assert.False(t, task.IsAttached())
}

func TestPush_IsIdempotentPerTask(t *testing.T) {
	s := New()
	task := s.CreateTask(func(int) {})
	s.Push("a", task)
	s.Push("b", task)

	var names []string
	s.ExportTasksInfo(func(info TaskInfo) { names = append(names, info.Name) })
	require.Len(t, names, 1)
	assert.Equal(t, "a", names[0])
}

func TestExportTasksInfo_ReportsRunCount(t *testing.T) {
	s := New()
	task := s.CreateTask(func(int) {})
	s.Push("counted", task)
	task.Attach(time.Millisecond, 0)

	now := time.Now()
	for i := 0; i < 6; i++ {
		now = now.Add(time.Millisecond)
		s.Loop(now)
	}

	var info TaskInfo
	s.ExportTasksInfo(func(i TaskInfo) { info = i })
	assert.Equal(t, 5, info.RunCount)
	assert.True(t, info.Attached)
}
