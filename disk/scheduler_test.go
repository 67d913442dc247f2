package disk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_WriteThenReadRoundTrips(t *testing.T) {
	d, _, err := NewDiskManager(tempDBFile(t))
	require.NoError(t, err)
	defer d.Close()

	s := NewScheduler(d)
	defer s.Close()

	pageId := d.AllocatePage()

	data := make([]byte, PageSize)
	data[0] = 0xAB

	writeDone := make(chan bool, 1)
	s.Schedule(&Request{IsWrite: true, PageID: pageId, Data: data, Done: writeDone})
	assert.True(t, <-writeDone)

	readBuf := make([]byte, PageSize)
	readDone := make(chan bool, 1)
	s.Schedule(&Request{IsWrite: false, PageID: pageId, Data: readBuf, Done: readDone})
	assert.True(t, <-readDone)

	assert.Equal(t, data, readBuf)
}

func TestScheduler_PreservesSubmissionOrder(t *testing.T) {
	d, _, err := NewDiskManager(tempDBFile(t))
	require.NoError(t, err)
	defer d.Close()

	s := NewScheduler(d)
	defer s.Close()

	pageId := d.AllocatePage()
	n := 20

	dones := make([]chan bool, n)
	for i := 0; i < n; i++ {
		data := make([]byte, PageSize)
		data[0] = byte(i)
		dones[i] = make(chan bool, 1)
		s.Schedule(&Request{IsWrite: true, PageID: pageId, Data: data, Done: dones[i]})
	}

	for i := 0; i < n; i++ {
		assert.True(t, <-dones[i])
	}

	final := make([]byte, PageSize)
	readDone := make(chan bool, 1)
	s.Schedule(&Request{IsWrite: false, PageID: pageId, Data: final, Done: readDone})
	<-readDone

	assert.Equal(t, byte(n-1), final[0])
}

func TestScheduler_IOFailureCompletesFalse(t *testing.T) {
	dm := &failingDiskManager{}
	s := NewScheduler(dm)
	defer s.Close()

	done := make(chan bool, 1)
	s.Schedule(&Request{IsWrite: false, PageID: 1, Data: make([]byte, PageSize), Done: done})
	assert.False(t, <-done)
}

type failingDiskManager struct{}

func (f *failingDiskManager) ReadPage(PageID, []byte) error  { return assertErr }
func (f *failingDiskManager) WritePage([]byte, PageID) error { return assertErr }
func (f *failingDiskManager) AllocatePage() PageID           { return 1 }
func (f *failingDiskManager) DeallocatePage(PageID)          {}
func (f *failingDiskManager) Close() error                   { return nil }

var assertErr = assertError("simulated i/o failure")

type assertError string

func (e assertError) Error() string { return string(e) }
