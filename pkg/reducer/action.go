package reducer

import (
	"time"

	"github.com/astromechza/pixelpusher/pkg/mutation"
	"github.com/astromechza/pixelpusher/pkg/state"
)

// Action is the closed set of inputs to the Engine. Each variant carries its own payload; the json tags are the
// payload field names used on the wire by DecodeAction.
//
//sumtype:decl
type Action interface {
	isAction()
}

// document lifecycle

type ServiceReady struct {
	ArchiverKey string `json:"archiverKey"`
}

type DocumentReady struct {
	ID         string        `json:"id"`
	Doc        state.Content `json:"doc"`
	IsWritable bool          `json:"isWritable"`
}

type DocumentUpdated struct {
	ID         string        `json:"id"`
	Doc        state.Content `json:"doc"`
	IsWritable bool          `json:"isWritable"`
}

type DocumentForked struct {
	ID         string        `json:"id"`
	SourceID   string        `json:"sourceId"`
	Doc        state.Content `json:"doc"`
	IsWritable bool          `json:"isWritable"`
}

type DocumentMerged struct {
	ID         string        `json:"id"`
	Doc        state.Content `json:"doc"`
	IsWritable bool          `json:"isWritable"`
}

type DocumentOpened struct {
	ID         string        `json:"id"`
	Doc        state.Content `json:"doc"`
	IsWritable bool          `json:"isWritable"`
}

type DocumentCreated struct {
	ID         string        `json:"id"`
	Doc        state.Content `json:"doc"`
	IsWritable bool          `json:"isWritable"`
}

type DocumentDeleted struct {
	ID string `json:"id"`
}

type StateLoaded struct {
	State state.State `json:"-"`
}

// project selection

type NewProject struct{}

type SetProject struct {
	ID string `json:"id"`
}

type ProjectVersionClicked struct {
	ID string `json:"id"`
}

type ProjectVersionDoubleClicked struct {
	ID string `json:"id"`
}

type ProjectCloneRequested struct {
	ID string `json:"id"`
}

type ProjectOpenRequested struct {
	ID string `json:"id"`
}

type ProjectTitleChanged struct {
	Title string `json:"title"`
}

// tools

// SetColorSelected selects a swatch; state.NoSwatch clears the selection.
type SetColorSelected struct {
	SwatchIndex int `json:"newColorSelected"`
}

type SwatchClicked struct {
	Index int `json:"index"`
}

type SetEraser struct{}

type SetBucket struct{}

type SetEyedropper struct{}

type SetColorPicker struct{}

// drawing

type DrawCell struct {
	PixelIndex int `json:"id"`
}

type PixelConflictClicked struct {
	Index       int `json:"index"`
	SwatchIndex int `json:"swatchIndex"`
}

type PixelsImported struct {
	Pixels []int `json:"pixels"`
	Width  int   `json:"width"`
	Height int   `json:"height"`
}

// grid

type ChangeDimensions struct {
	Dimension mutation.Dimension `json:"gridProperty"`
	Behavior  mutation.Behavior  `json:"behaviour"`
}

type SetCellSize struct {
	CellSize int `json:"cellSize"`
}

type ResetGrid struct {
	FrameIndex int `json:"activeFrameIndex"`
}

// frames

type CreateNewFrame struct{}

type DeleteFrame struct {
	FrameIndex int `json:"frameIndex"`
}

type DuplicateFrame struct {
	FrameIndex int `json:"frameIndex"`
}

type ChangeActiveFrame struct {
	FrameIndex int `json:"frameIndex"`
}

type ChangeFrameInterval struct {
	FrameIndex int `json:"frameIndex"`
	Interval   int `json:"interval"`
}

type SetDuration struct {
	Duration float64 `json:"duration"`
}

// palette

type SetSwatchColor struct {
	Color string `json:"color"`
}

// peers

type PeerConnected struct {
	Key  string         `json:"key"`
	ID   string         `json:"id"`
	Info state.PeerInfo `json:"info"`
}

type SelfConnected struct {
	Key      string `json:"key"`
	ID       string `json:"id"`
	Writable bool   `json:"writable"`
}

type PeerDisconnected struct {
	Key string `json:"key"`
	ID  string `json:"id"`
}

type SelfNameChanged struct {
	Name string `json:"name"`
}

type SelfAvatarSet struct {
	Key string `json:"key"`
}

type AddCloudPeer struct {
	Key string `json:"key"`
}

type RemoveCloudPeer struct {
	Key string `json:"key"`
}

type CloudPeerPing struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// session

type ShowSpinner struct{}

type HideSpinner struct{}

// SendNotification replaces the pending notification; an empty message clears it.
type SendNotification struct {
	Message string `json:"message"`
}

type MergePreviewStarted struct {
	ID string `json:"id"`
}

type MergePreviewEnded struct{}

// Unknown stands in for an action kind this build does not recognise. The engine ignores it.
type Unknown struct {
	Type string `json:"type"`
}

func (ServiceReady) isAction()                {}
func (DocumentReady) isAction()               {}
func (DocumentUpdated) isAction()             {}
func (DocumentForked) isAction()              {}
func (DocumentMerged) isAction()              {}
func (DocumentOpened) isAction()              {}
func (DocumentCreated) isAction()             {}
func (DocumentDeleted) isAction()             {}
func (StateLoaded) isAction()                 {}
func (NewProject) isAction()                  {}
func (SetProject) isAction()                  {}
func (ProjectVersionClicked) isAction()       {}
func (ProjectVersionDoubleClicked) isAction() {}
func (ProjectCloneRequested) isAction()       {}
func (ProjectOpenRequested) isAction()        {}
func (ProjectTitleChanged) isAction()         {}
func (SetColorSelected) isAction()            {}
func (SwatchClicked) isAction()               {}
func (SetEraser) isAction()                   {}
func (SetBucket) isAction()                   {}
func (SetEyedropper) isAction()               {}
func (SetColorPicker) isAction()              {}
func (DrawCell) isAction()                    {}
func (PixelConflictClicked) isAction()        {}
func (PixelsImported) isAction()              {}
func (ChangeDimensions) isAction()            {}
func (SetCellSize) isAction()                 {}
func (ResetGrid) isAction()                   {}
func (CreateNewFrame) isAction()              {}
func (DeleteFrame) isAction()                 {}
func (DuplicateFrame) isAction()              {}
func (ChangeActiveFrame) isAction()           {}
func (ChangeFrameInterval) isAction()         {}
func (SetDuration) isAction()                 {}
func (SetSwatchColor) isAction()              {}
func (PeerConnected) isAction()               {}
func (SelfConnected) isAction()               {}
func (PeerDisconnected) isAction()            {}
func (SelfNameChanged) isAction()             {}
func (SelfAvatarSet) isAction()               {}
func (AddCloudPeer) isAction()                {}
func (RemoveCloudPeer) isAction()             {}
func (CloudPeerPing) isAction()               {}
func (ShowSpinner) isAction()                 {}
func (HideSpinner) isAction()                 {}
func (SendNotification) isAction()            {}
func (MergePreviewStarted) isAction()         {}
func (MergePreviewEnded) isAction()           {}
func (Unknown) isAction()                     {}
