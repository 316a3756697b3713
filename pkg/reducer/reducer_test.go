package reducer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/astromechza/pixelpusher/pkg/mutation"
	"github.com/astromechza/pixelpusher/pkg/state"
)

type bucketCall struct {
	frameIndex, pixelIndex, swatchID, fill int
}

// recordingMutator behaves like mutation.Default but remembers the flood fills and cell writes it was asked for.
type recordingMutator struct {
	mutation.Default
	buckets  []bucketCall
	setCells int
}

func (m *recordingMutator) Bucket(c state.Content, frameIndex, pixelIndex, swatchID, fill int) state.Content {
	m.buckets = append(m.buckets, bucketCall{frameIndex, pixelIndex, swatchID, fill})
	return m.Default.Bucket(c, frameIndex, pixelIndex, swatchID, fill)
}

func (m *recordingMutator) SetCell(c state.Content, frameIndex, pixelIndex, value int) state.Content {
	m.setCells++
	return m.Default.SetCell(c, frameIndex, pixelIndex, value)
}

func contentWithFrames(n int) state.Content {
	c := mutation.NewContent()
	for i := 1; i < n; i++ {
		c = mutation.Default{}.AddFrame(c)
	}
	return c
}

func withProject(frames int) state.State {
	s := state.New()
	s = s.WithProject(state.Project{ID: "p1", Doc: contentWithFrames(frames), IsWritable: true})
	s.CurrentProjectID = "p1"
	return s
}

func currentDoc(t *testing.T, s state.State) state.Content {
	t.Helper()
	p, ok := s.CurrentProject()
	require.True(t, ok, "expected a current project")
	return p.Doc
}

func exclusiveTools(s state.State) bool {
	on := 0
	for _, b := range []bool{s.EraserOn, s.EyedropperOn, s.ColorPickerOn, s.BucketOn} {
		if b {
			on++
		}
	}
	return on <= 1
}

func TestUnknownAndNilActionsLeaveStateUnchanged(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(2)
	s.ActiveFrameIndex = 1

	require.Equal(t, s, e.Reduce(s, Unknown{Type: "SOMETHING_NEW"}))
	require.Equal(t, s, e.Reduce(s, nil))
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(1)
	before := currentDoc(t, s).Clone()

	next := e.Reduce(s, DrawCell{PixelIndex: 3})
	require.Equal(t, before, currentDoc(t, s))
	require.Equal(t, 0, currentDoc(t, next).Frames[0].Pixels[3])

	next = e.Reduce(s, PeerConnected{Key: "k", ID: "peer"})
	require.Empty(t, s.Peers)
	require.Len(t, next.Peers, 1)
}

func TestActionsWithoutCurrentProjectAreNoOps(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := state.New()
	for _, a := range []Action{
		DrawCell{PixelIndex: 0},
		CreateNewFrame{},
		DeleteFrame{FrameIndex: 0},
		DuplicateFrame{FrameIndex: 0},
		SetSwatchColor{Color: "#123456"},
		ChangeDimensions{Dimension: mutation.Rows, Behavior: mutation.Add},
		ChangeFrameInterval{FrameIndex: 0, Interval: 5},
		PixelConflictClicked{Index: 1, SwatchIndex: 2},
	} {
		require.Equal(t, s, e.Reduce(s, a), "%T", a)
	}
}

func TestToolModesAreMutuallyExclusive(t *testing.T) {
	e := NewEngine(mutation.Default{})
	modes := []Action{SetEraser{}, SetBucket{}, SetEyedropper{}, SetColorPicker{}, SwatchClicked{Index: 2}, SetColorSelected{SwatchIndex: 1}}
	rng := rand.New(rand.NewSource(42))
	s := withProject(1)
	for i := 0; i < 500; i++ {
		s = e.Reduce(s, modes[rng.Intn(len(modes))])
		require.True(t, exclusiveTools(s), "step %d: %+v", i, s)
	}
}

func TestSetEraserClearsSwatch(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := e.Reduce(withProject(1), SetBucket{})
	s = e.Reduce(s, SetEraser{})
	require.True(t, s.EraserOn)
	require.False(t, s.BucketOn)
	require.Equal(t, state.NoSwatch, s.CurrentSwatchIndex)
}

func TestBucketTogglesBackToNoTool(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(1)
	s.CurrentSwatchIndex = 4

	once := e.Reduce(s, SetBucket{})
	require.True(t, once.BucketOn)
	twice := e.Reduce(once, SetBucket{})
	require.False(t, twice.BucketOn)
	require.Equal(t, s.EraserOn, twice.EraserOn)
	require.Equal(t, s.EyedropperOn, twice.EyedropperOn)
	require.Equal(t, s.ColorPickerOn, twice.ColorPickerOn)
	require.Equal(t, 4, twice.CurrentSwatchIndex)
}

func TestEyedropperAndColorPickerAreNotToggles(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := e.Reduce(e.Reduce(withProject(1), SetEyedropper{}), SetEyedropper{})
	require.True(t, s.EyedropperOn)
	s = e.Reduce(e.Reduce(s, SetColorPicker{}), SetColorPicker{})
	require.True(t, s.ColorPickerOn)
	require.False(t, s.EyedropperOn)
}

func TestDrawCellWithBucketDelegatesToFloodFill(t *testing.T) {
	m := &recordingMutator{}
	e := NewEngine(m)
	s := withProject(1)
	s = s.WithProject(state.Project{ID: "p1", Doc: m.Default.SetCell(currentDoc(t, s), 0, 5, 3), IsWritable: true})
	s.CurrentSwatchIndex = 7
	s.BucketOn = true

	next := e.Reduce(s, DrawCell{PixelIndex: 5})

	require.Equal(t, []bucketCall{{frameIndex: 0, pixelIndex: 5, swatchID: 3, fill: 7}}, m.buckets)
	require.Zero(t, m.setCells)
	require.Equal(t, 7, currentDoc(t, next).Frames[0].Pixels[5])
}

func TestDrawCellBucketTakesPrecedenceOverEraser(t *testing.T) {
	m := &recordingMutator{}
	e := NewEngine(m)
	s := withProject(1)
	s.EraserOn = true
	s.BucketOn = true

	e.Reduce(s, DrawCell{PixelIndex: 0})
	require.Len(t, m.buckets, 1)
	require.Zero(t, m.setCells)
}

func TestDrawCellWithEyedropperSelectsSampledColor(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(2)
	doc := mutation.Default{}.SetCell(currentDoc(t, s), 1, 9, 12)
	s = s.WithProject(state.Project{ID: "p1", Doc: doc})
	s.ActiveFrameIndex = 1
	s.EyedropperOn = true

	next := e.Reduce(s, DrawCell{PixelIndex: 9})
	require.Equal(t, 12, next.CurrentSwatchIndex)
	require.False(t, next.EyedropperOn)
	require.Equal(t, doc, currentDoc(t, next))
}

func TestDrawCellPaintsAndErases(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(2)
	s.ActiveFrameIndex = 1
	s.CurrentSwatchIndex = 2

	painted := e.Reduce(s, DrawCell{PixelIndex: 4})
	require.Equal(t, 2, currentDoc(t, painted).Frames[1].Pixels[4])
	require.Equal(t, state.Transparent, currentDoc(t, painted).Frames[0].Pixels[4])

	erased := e.Reduce(e.Reduce(painted, SetEraser{}), DrawCell{PixelIndex: 4})
	require.Equal(t, state.Transparent, currentDoc(t, erased).Frames[1].Pixels[4])
}

func TestDeleteFrameAfterActiveKeepsIndex(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(2)
	s.ActiveFrameIndex = 0

	next := e.Reduce(s, DeleteFrame{FrameIndex: 1})
	require.Len(t, currentDoc(t, next).Frames, 1)
	require.Equal(t, 0, next.ActiveFrameIndex)
}

func TestDeleteFrameBeforeActiveDecrementsIndex(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(2)
	s.ActiveFrameIndex = 1

	next := e.Reduce(s, DeleteFrame{FrameIndex: 0})
	require.Len(t, currentDoc(t, next).Frames, 1)
	require.Equal(t, 0, next.ActiveFrameIndex)
}

func TestDeleteOnlyFrameIsNoOp(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(1)
	require.Equal(t, s, e.Reduce(s, DeleteFrame{FrameIndex: 0}))
}

func TestCreateAndDuplicateFrameMoveActiveIndex(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(2)

	created := e.Reduce(s, CreateNewFrame{})
	require.Len(t, currentDoc(t, created).Frames, 3)
	require.Equal(t, 2, created.ActiveFrameIndex)

	painted := e.Reduce(e.Reduce(created, ChangeActiveFrame{FrameIndex: 0}), DrawCell{PixelIndex: 1})
	dup := e.Reduce(painted, DuplicateFrame{FrameIndex: 0})
	require.Len(t, currentDoc(t, dup).Frames, 4)
	require.Equal(t, 1, dup.ActiveFrameIndex)
	require.Equal(t, currentDoc(t, dup).Frames[0], currentDoc(t, dup).Frames[1])
}

func TestFrameIndexStaysInRange(t *testing.T) {
	e := NewEngine(mutation.Default{})
	rng := rand.New(rand.NewSource(7))
	s := withProject(1)
	for i := 0; i < 1000; i++ {
		count := s.FrameCount()
		var a Action
		switch rng.Intn(4) {
		case 0:
			a = CreateNewFrame{}
		case 1:
			a = DeleteFrame{FrameIndex: rng.Intn(count + 1)}
		case 2:
			a = DuplicateFrame{FrameIndex: rng.Intn(count + 1)}
		case 3:
			a = ChangeActiveFrame{FrameIndex: rng.Intn(count+2) - 1}
		}
		s = e.Reduce(s, a)
		require.GreaterOrEqual(t, s.ActiveFrameIndex, 0, "step %d %#v", i, a)
		require.Less(t, s.ActiveFrameIndex, s.FrameCount(), "step %d %#v", i, a)
	}
}

func TestRemoteUpdateThatShrinksFramesClampsActiveIndex(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(3)
	s.ActiveFrameIndex = 2

	next := e.Reduce(s, DocumentUpdated{ID: "p1", Doc: contentWithFrames(1), IsWritable: true})
	require.Equal(t, 0, next.ActiveFrameIndex)
}

func TestSetSwatchColorAppendsWhenNothingSelected(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(1)
	s.CurrentSwatchIndex = state.NoSwatch
	size := len(currentDoc(t, s).Palette)

	next := e.Reduce(s, SetSwatchColor{Color: "#abcdef"})
	palette := currentDoc(t, next).Palette
	require.Len(t, palette, size+1)
	require.Equal(t, "#abcdef", palette[size])
	require.Equal(t, size, next.CurrentSwatchIndex)
}

func TestSetSwatchColorOverwritesSelected(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(1)
	s.CurrentSwatchIndex = 1
	size := len(currentDoc(t, s).Palette)

	next := e.Reduce(s, SetSwatchColor{Color: "#abcdef"})
	require.Len(t, currentDoc(t, next).Palette, size)
	require.Equal(t, "#abcdef", currentDoc(t, next).Palette[1])
	require.Equal(t, 1, next.CurrentSwatchIndex)
}

func TestDocumentDeletedClearsCurrentAndNotifies(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(1)
	s = e.Reduce(s, SendNotification{Message: "older"})

	next := e.Reduce(s, DocumentDeleted{ID: "p1"})
	require.Empty(t, next.CurrentProjectID)
	require.NotContains(t, next.Projects, "p1")
	require.Equal(t, []state.Notification{{ID: 0, Message: "Project deleted"}}, next.Notifications)
}

func TestDocumentDeletedForOtherProjectKeepsCurrent(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(1).WithProject(state.Project{ID: "p2"})

	next := e.Reduce(s, DocumentDeleted{ID: "p2"})
	require.Equal(t, "p1", next.CurrentProjectID)
	require.NotContains(t, next.Projects, "p2")
}

func TestDocumentUpdatedOpensPendingProject(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(2)
	s.ActiveFrameIndex = 1
	s = e.Reduce(s, ProjectOpenRequested{ID: "remote"})
	require.Equal(t, "remote", s.OpeningProjectID)
	require.True(t, s.Projects["remote"].IsOpening)
	require.Equal(t, "p1", s.CurrentProjectID)

	next := e.Reduce(s, DocumentUpdated{ID: "remote", Doc: contentWithFrames(1)})
	require.Equal(t, "remote", next.CurrentProjectID)
	require.False(t, next.Projects["remote"].IsOpening)
	require.Empty(t, next.OpeningProjectID)
	require.Equal(t, 0, next.ActiveFrameIndex)
}

func TestDocumentUpdatedUpsertsWithoutSelecting(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(1)

	next := e.Reduce(s, DocumentUpdated{ID: "other", Doc: contentWithFrames(2)})
	require.Equal(t, "p1", next.CurrentProjectID)
	require.Len(t, next.Projects["other"].Doc.Frames, 2)
}

func TestDocumentLifecycleSelectsProject(t *testing.T) {
	e := NewEngine(mutation.Default{})
	for _, a := range []Action{
		DocumentCreated{ID: "n", Doc: contentWithFrames(1), IsWritable: true},
		DocumentOpened{ID: "n", Doc: contentWithFrames(1), IsWritable: true},
		DocumentMerged{ID: "n", Doc: contentWithFrames(1), IsWritable: true},
		DocumentForked{ID: "n", SourceID: "p1", Doc: contentWithFrames(1), IsWritable: true},
	} {
		s := withProject(2)
		s.ActiveFrameIndex = 1
		s.ClonedProjectID = "p1"
		next := e.Reduce(s, a)
		require.Equal(t, "n", next.CurrentProjectID, "%T", a)
		require.Equal(t, 0, next.ActiveFrameIndex, "%T", a)
		require.Equal(t, "n", next.Projects["n"].ID, "%T", a)
		if _, forked := a.(DocumentForked); forked {
			require.Empty(t, next.ClonedProjectID)
		}
	}
}

func TestDocumentReadyDoesNotSelect(t *testing.T) {
	e := NewEngine(mutation.Default{})
	next := e.Reduce(state.New(), DocumentReady{ID: "r", Doc: contentWithFrames(1)})
	require.Empty(t, next.CurrentProjectID)
	require.Contains(t, next.Projects, "r")
}

func TestSetProjectResetsActiveFrame(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(3)
	s.ActiveFrameIndex = 2
	for _, a := range []Action{SetProject{ID: "p1"}, ProjectVersionClicked{ID: "p1"}, ProjectVersionDoubleClicked{ID: "p1"}} {
		require.Equal(t, 0, e.Reduce(s, a).ActiveFrameIndex, "%T", a)
	}
}

func TestNewProjectBumpsCreatedCount(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := withProject(2)
	s.ActiveFrameIndex = 1
	s.CurrentSwatchIndex = state.NoSwatch

	next := e.Reduce(e.Reduce(s, NewProject{}), NewProject{})
	require.Equal(t, 2, next.CreatedProjectCount)
	require.Equal(t, 0, next.ActiveFrameIndex)
	require.Equal(t, 0, next.CurrentSwatchIndex)
}

func TestPeerPresence(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := e.Reduce(state.New(), SelfNameChanged{Name: "me"})
	s = e.Reduce(s, SelfConnected{Key: "doc", ID: "self", Writable: true})
	s = e.Reduce(s, PeerConnected{Key: "doc", ID: "other", Info: state.PeerInfo{Name: "them"}})

	require.Equal(t, state.Peer{Key: "doc", ID: "self", IsConnected: true, IsSelf: true, CanEdit: true, Info: state.PeerInfo{Name: "me"}}, s.Peers["self"])
	require.Equal(t, "them", s.Peers["other"].Info.Name)

	s = e.Reduce(s, PeerDisconnected{Key: "doc", ID: "other"})
	require.NotContains(t, s.Peers, "other")
	require.Contains(t, s.Peers, "self")
}

func TestCloudPeers(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := e.Reduce(state.New(), AddCloudPeer{Key: "relay"})
	require.Contains(t, s.CloudPeers, "relay")
	s = e.Reduce(s, CloudPeerPing{Key: "relay", Name: "relay-1"})
	require.Equal(t, "relay-1", s.CloudPeers["relay"].Name)
	s = e.Reduce(s, RemoveCloudPeer{Key: "relay"})
	require.Empty(t, s.CloudPeers)
}

func TestNotificationsHoldAtMostOneMessage(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := e.Reduce(state.New(), SendNotification{Message: "a"})
	s = e.Reduce(s, SendNotification{Message: "b"})
	require.Equal(t, []state.Notification{{Message: "b"}}, s.Notifications)
	s = e.Reduce(s, SendNotification{Message: ""})
	require.Empty(t, s.Notifications)
}

func TestMergePreviewIsIndependentOfCurrentProject(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := e.Reduce(withProject(1), MergePreviewStarted{ID: "other"})
	require.Equal(t, "other", s.MergePreviewProjectID)
	require.Equal(t, "p1", s.CurrentProjectID)
	s = e.Reduce(s, MergePreviewEnded{})
	require.Empty(t, s.MergePreviewProjectID)
	require.Equal(t, "p1", s.CurrentProjectID)
}

func TestSessionFlags(t *testing.T) {
	e := NewEngine(mutation.Default{})
	s := e.Reduce(state.New(), ShowSpinner{})
	require.True(t, s.Loading)
	s = e.Reduce(s, HideSpinner{})
	require.False(t, s.Loading)
	s = e.Reduce(s, SetDuration{Duration: 2.5})
	require.Equal(t, 2.5, s.Duration)
	s = e.Reduce(s, ServiceReady{ArchiverKey: "abc"})
	require.Equal(t, "abc", s.ArchiverKey)

	loaded := e.Reduce(s, StateLoaded{State: withProject(1)})
	require.True(t, loaded.IsLoaded)
	require.Equal(t, "p1", loaded.CurrentProjectID)
}
