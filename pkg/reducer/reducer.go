// Package reducer is the transition engine: the only code that produces new state.State values. Engine.Reduce is
// pure and total; it never blocks and never fails, and actions that reference missing projects or out of range
// frames leave the state as it was.
package reducer

import (
	"github.com/astromechza/pixelpusher/pkg/mutation"
	"github.com/astromechza/pixelpusher/pkg/state"
)

// Mutator is the set of drawing document transformations the engine delegates to.
type Mutator interface {
	SetCell(c state.Content, frameIndex, pixelIndex, value int) state.Content
	Bucket(c state.Content, frameIndex, pixelIndex, swatchID, fill int) state.Content
	AddFrame(c state.Content) state.Content
	DeleteFrame(c state.Content, frameIndex int) state.Content
	CloneFrame(c state.Content, frameIndex int) state.Content
	ResetFrame(c state.Content, frameIndex int) state.Content
	SetFrameInterval(c state.Content, frameIndex, interval int) state.Content
	SetSwatchColor(c state.Content, swatchIndex int, color string) state.Content
	AddColor(c state.Content, color string) state.Content
	SetCellSize(c state.Content, cellSize int) state.Content
	SetTitle(c state.Content, title string) state.Content
	Resize(c state.Content, dimension mutation.Dimension, behavior mutation.Behavior) state.Content
	AddFrameFromPixels(c state.Content, pixels []int, width, height int) state.Content
}

const projectDeletedMessage = "Project deleted"

type Engine struct {
	mut Mutator
}

func NewEngine(m Mutator) *Engine {
	return &Engine{mut: m}
}

// Reduce applies one action. Unrecognised and nil actions return s unchanged.
func (e *Engine) Reduce(s state.State, action Action) state.State {
	switch a := action.(type) {
	case ServiceReady:
		s.ArchiverKey = a.ArchiverKey
		return s
	case DocumentReady:
		return addProject(s, makeProject(a.ID, a.Doc, a.IsWritable))
	case DocumentUpdated:
		return remoteProjectUpdated(s, makeProject(a.ID, a.Doc, a.IsWritable))
	case DocumentForked:
		s = setProject(s, makeProject(a.ID, a.Doc, a.IsWritable))
		if a.SourceID != "" && s.ClonedProjectID == a.SourceID {
			s.ClonedProjectID = ""
		}
		return s
	case DocumentMerged:
		return setProject(s, makeProject(a.ID, a.Doc, a.IsWritable))
	case DocumentOpened:
		return setProject(s, makeProject(a.ID, a.Doc, a.IsWritable))
	case DocumentCreated:
		return setProject(s, makeProject(a.ID, a.Doc, a.IsWritable))
	case DocumentDeleted:
		return deleteProject(s, a.ID)
	case StateLoaded:
		loaded := a.State
		loaded.IsLoaded = true
		return loaded

	case NewProject:
		s.CreatedProjectCount++
		s.ActiveFrameIndex = 0
		s.CurrentSwatchIndex = 0
		return s
	case SetProject:
		return setProjectID(s, a.ID)
	case ProjectVersionClicked:
		return setProjectID(s, a.ID)
	case ProjectVersionDoubleClicked:
		return setProjectID(s, a.ID)
	case ProjectCloneRequested:
		s.ClonedProjectID = a.ID
		return s
	case ProjectOpenRequested:
		return requestOpen(s, a.ID)
	case ProjectTitleChanged:
		return e.updateProject(s, func(c state.Content) state.Content { return e.mut.SetTitle(c, a.Title) })

	case SetColorSelected:
		return setColorSelected(s, a.SwatchIndex)
	case SwatchClicked:
		s.CurrentSwatchIndex = a.Index
		s.EraserOn, s.EyedropperOn, s.ColorPickerOn, s.BucketOn = false, false, false, false
		return s
	case SetEraser:
		s.CurrentSwatchIndex = state.NoSwatch
		s.EraserOn, s.EyedropperOn, s.ColorPickerOn, s.BucketOn = true, false, false, false
		return s
	case SetBucket:
		s.EraserOn, s.EyedropperOn, s.ColorPickerOn, s.BucketOn = false, false, false, !s.BucketOn
		return s
	case SetEyedropper:
		s.EraserOn, s.EyedropperOn, s.ColorPickerOn, s.BucketOn = false, true, false, false
		return s
	case SetColorPicker:
		s.EraserOn, s.EyedropperOn, s.ColorPickerOn, s.BucketOn = false, false, true, false
		return s

	case DrawCell:
		return e.drawCell(s, a.PixelIndex)
	case PixelConflictClicked:
		return e.setGridCellValue(s, a.Index, a.SwatchIndex)
	case PixelsImported:
		return e.updateProject(s, func(c state.Content) state.Content {
			return e.mut.AddFrameFromPixels(c, a.Pixels, a.Width, a.Height)
		})

	case ChangeDimensions:
		return e.updateProject(s, func(c state.Content) state.Content { return e.mut.Resize(c, a.Dimension, a.Behavior) })
	case SetCellSize:
		return e.updateProject(s, func(c state.Content) state.Content { return e.mut.SetCellSize(c, a.CellSize) })
	case ResetGrid:
		return e.updateProject(s, func(c state.Content) state.Content { return e.mut.ResetFrame(c, a.FrameIndex) })

	case CreateNewFrame:
		return e.createNewFrame(s)
	case DeleteFrame:
		return e.deleteFrame(s, a.FrameIndex)
	case DuplicateFrame:
		return e.duplicateFrame(s, a.FrameIndex)
	case ChangeActiveFrame:
		return changeActiveFrame(s, a.FrameIndex)
	case ChangeFrameInterval:
		return e.updateProject(s, func(c state.Content) state.Content {
			return e.mut.SetFrameInterval(c, a.FrameIndex, a.Interval)
		})
	case SetDuration:
		s.Duration = a.Duration
		return s

	case SetSwatchColor:
		return e.setSwatchColor(s, a.Color)

	case PeerConnected:
		return s.WithPeer(state.Peer{Key: a.Key, ID: a.ID, IsConnected: true, Info: a.Info})
	case SelfConnected:
		return s.WithPeer(state.Peer{Key: a.Key, ID: a.ID, IsSelf: true, IsConnected: true, CanEdit: a.Writable, Info: s.PeerInfo})
	case PeerDisconnected:
		return s.WithoutPeer(a.ID)
	case SelfNameChanged:
		s.PeerInfo.Name = a.Name
		return s
	case SelfAvatarSet:
		s.PeerInfo.AvatarKey = a.Key
		return s
	case AddCloudPeer:
		return s.WithCloudPeer(a.Key, state.CloudPeer{})
	case RemoveCloudPeer:
		return s.WithoutCloudPeer(a.Key)
	case CloudPeerPing:
		return s.WithCloudPeer(a.Key, state.CloudPeer{Name: a.Name, Timestamp: a.Timestamp})

	case ShowSpinner:
		s.Loading = true
		return s
	case HideSpinner:
		s.Loading = false
		return s
	case SendNotification:
		return sendNotification(s, a.Message)
	case MergePreviewStarted:
		s.MergePreviewProjectID = a.ID
		return s
	case MergePreviewEnded:
		s.MergePreviewProjectID = ""
		return s

	case Unknown:
		return s
	default:
		return s
	}
}

func makeProject(id string, doc state.Content, writable bool) state.Project {
	return state.Project{ID: id, Doc: doc, IsWritable: writable}
}

func setProjectID(s state.State, id string) state.State {
	s.CurrentProjectID = id
	s.ActiveFrameIndex = 0
	return s
}

func addProject(s state.State, p state.Project) state.State {
	return clampActiveFrame(s.WithProject(p))
}

// setProject stores p as a fully opened project and makes it current.
func setProject(s state.State, p state.Project) state.State {
	p.IsOpening = false
	s = setProjectID(s.WithProject(p), p.ID)
	if s.OpeningProjectID == p.ID {
		s.OpeningProjectID = ""
	}
	return s
}

func remoteProjectUpdated(s state.State, p state.Project) state.State {
	if prev, ok := s.Projects[p.ID]; ok && prev.IsOpening {
		return setProject(s, p)
	}
	return addProject(s, p)
}

func deleteProject(s state.State, id string) state.State {
	s = sendNotification(s, projectDeletedMessage)
	if s.CurrentProjectID == id {
		s.CurrentProjectID = ""
	}
	if s.MergePreviewProjectID == id {
		s.MergePreviewProjectID = ""
	}
	return clampActiveFrame(s.WithoutProject(id))
}

func requestOpen(s state.State, id string) state.State {
	if id == "" {
		return s
	}
	s.OpeningProjectID = id
	if _, ok := s.Projects[id]; !ok {
		s = s.WithProject(state.Project{ID: id, IsOpening: true})
	}
	return s
}

func sendNotification(s state.State, message string) state.State {
	if message == "" {
		s.Notifications = nil
		return s
	}
	s.Notifications = []state.Notification{{ID: 0, Message: message}}
	return s
}

func setColorSelected(s state.State, swatchIndex int) state.State {
	s.EraserOn, s.EyedropperOn, s.ColorPickerOn = false, false, false
	s.CurrentSwatchIndex = swatchIndex
	return s
}

// clampActiveFrame keeps ActiveFrameIndex inside the current project's frames, or at 0 when there are none.
func clampActiveFrame(s state.State) state.State {
	count := s.FrameCount()
	switch {
	case count == 0 || s.ActiveFrameIndex < 0:
		s.ActiveFrameIndex = 0
	case s.ActiveFrameIndex >= count:
		s.ActiveFrameIndex = count - 1
	}
	return s
}

// updateProject replaces the current project's document with fn's result. Without a current project it is a no-op.
func (e *Engine) updateProject(s state.State, fn func(state.Content) state.Content) state.State {
	p, ok := s.CurrentProject()
	if !ok {
		return s
	}
	p.Doc = fn(p.Doc)
	return clampActiveFrame(s.WithProject(p))
}

func (e *Engine) setGridCellValue(s state.State, pixelIndex, value int) state.State {
	frame := s.ActiveFrameIndex
	return e.updateProject(s, func(c state.Content) state.Content { return e.mut.SetCell(c, frame, pixelIndex, value) })
}

// drawCell applies the active tool to one cell. Bucket and eyedropper sample the cell first and take precedence over
// eraser and plain painting.
func (e *Engine) drawCell(s state.State, pixelIndex int) state.State {
	p, ok := s.CurrentProject()
	if !ok {
		return s
	}
	if s.BucketOn || s.EyedropperOn {
		frame := s.ActiveFrameIndex
		swatchID := p.Doc.PixelAt(frame, pixelIndex)
		if s.EyedropperOn {
			return setColorSelected(s, swatchID)
		}
		fill := s.CurrentSwatchIndex
		return e.updateProject(s, func(c state.Content) state.Content {
			return e.mut.Bucket(c, frame, pixelIndex, swatchID, fill)
		})
	}
	value := s.CurrentSwatchIndex
	if s.EraserOn {
		value = state.Transparent
	}
	return e.setGridCellValue(s, pixelIndex, value)
}

func (e *Engine) createNewFrame(s state.State) state.State {
	before := s.FrameCount()
	next := e.updateProject(s, e.mut.AddFrame)
	if next.FrameCount() == before {
		return s
	}
	next.ActiveFrameIndex = before
	return next
}

func (e *Engine) deleteFrame(s state.State, frameIndex int) state.State {
	before := s.FrameCount()
	next := e.updateProject(s, func(c state.Content) state.Content { return e.mut.DeleteFrame(c, frameIndex) })
	if next.FrameCount() == before {
		return s
	}
	if frameIndex <= s.ActiveFrameIndex {
		next.ActiveFrameIndex = s.ActiveFrameIndex - 1
	} else {
		next.ActiveFrameIndex = s.ActiveFrameIndex
	}
	return clampActiveFrame(next)
}

// duplicateFrame inserts a copy right after frameIndex and makes the copy active.
func (e *Engine) duplicateFrame(s state.State, frameIndex int) state.State {
	before := s.FrameCount()
	next := e.updateProject(s, func(c state.Content) state.Content { return e.mut.CloneFrame(c, frameIndex) })
	if next.FrameCount() == before {
		return s
	}
	next.ActiveFrameIndex = frameIndex + 1
	return clampActiveFrame(next)
}

func changeActiveFrame(s state.State, frameIndex int) state.State {
	count := s.FrameCount()
	if frameIndex < 0 || (frameIndex >= count && !(count == 0 && frameIndex == 0)) {
		return s
	}
	s.ActiveFrameIndex = frameIndex
	return s
}

func (e *Engine) setSwatchColor(s state.State, color string) state.State {
	if s.CurrentSwatchIndex != state.NoSwatch {
		index := s.CurrentSwatchIndex
		return e.updateProject(s, func(c state.Content) state.Content { return e.mut.SetSwatchColor(c, index, color) })
	}
	p, ok := s.CurrentProject()
	if !ok {
		return s
	}
	appended := len(p.Doc.Palette)
	s = e.updateProject(s, func(c state.Content) state.Content { return e.mut.AddColor(c, color) })
	s.CurrentSwatchIndex = appended
	return s
}
