package reducer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/astromechza/pixelpusher/pkg/mutation"
	"github.com/astromechza/pixelpusher/pkg/state"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

var decoders = map[string]func(json.RawMessage) (Action, error){
	"HYPERMERGE_READY":               decodeAs[ServiceReady],
	"DOCUMENT_READY":                 decodeAs[DocumentReady],
	"DOCUMENT_UPDATED":               decodeAs[DocumentUpdated],
	"DOCUMENT_FORKED":                decodeAs[DocumentForked],
	"DOCUMENT_MERGED":                decodeAs[DocumentMerged],
	"DOCUMENT_OPENED":                decodeAs[DocumentOpened],
	"DOCUMENT_CREATED":               decodeAs[DocumentCreated],
	"DOCUMENT_DELETED":               decodeAs[DocumentDeleted],
	"NEW_PROJECT":                    decodeAs[NewProject],
	"SET_PROJECT":                    decodeAs[SetProject],
	"PROJECT_VERSION_CLICKED":        decodeAs[ProjectVersionClicked],
	"PROJECT_VERSION_DOUBLE_CLICKED": decodeAs[ProjectVersionDoubleClicked],
	"PROJECT_CLONE_REQUESTED":        decodeAs[ProjectCloneRequested],
	"PROJECT_OPEN_REQUESTED":         decodeAs[ProjectOpenRequested],
	"PROJECT_TITLE_CHANGED":          decodeAs[ProjectTitleChanged],
	"SET_COLOR_SELECTED":             decodeColorSelected,
	"SWATCH_CLICKED":                 decodeAs[SwatchClicked],
	"SET_ERASER":                     decodeAs[SetEraser],
	"SET_BUCKET":                     decodeAs[SetBucket],
	"SET_EYEDROPPER":                 decodeAs[SetEyedropper],
	"SET_COLOR_PICKER":               decodeAs[SetColorPicker],
	"DRAW_CELL":                      decodeAs[DrawCell],
	"PIXEL_CONFLICT_CLICKED":         decodeAs[PixelConflictClicked],
	"PIXELS_IMPORTED":                decodeAs[PixelsImported],
	"CHANGE_DIMENSIONS":              decodeAs[ChangeDimensions],
	"SET_CELL_SIZE":                  decodeAs[SetCellSize],
	"SET_RESET_GRID":                 decodeAs[ResetGrid],
	"CREATE_NEW_FRAME":               decodeAs[CreateNewFrame],
	"DELETE_FRAME":                   decodeAs[DeleteFrame],
	"DUPLICATE_FRAME":                decodeAs[DuplicateFrame],
	"CHANGE_ACTIVE_FRAME":            decodeAs[ChangeActiveFrame],
	"CHANGE_FRAME_INTERVAL":          decodeAs[ChangeFrameInterval],
	"SET_DURATION":                   decodeAs[SetDuration],
	"SET_SWATCH_COLOR":               decodeAs[SetSwatchColor],
	"PEER_CONNECTED":                 decodeAs[PeerConnected],
	"SELF_CONNECTED":                 decodeAs[SelfConnected],
	"PEER_DISCONNECTED":              decodeAs[PeerDisconnected],
	"SELF_NAME_CHANGED":              decodeAs[SelfNameChanged],
	"SELF_AVATAR_SET":                decodeAs[SelfAvatarSet],
	"ADD_CLOUD_PEER":                 decodeAs[AddCloudPeer],
	"REMOVE_CLOUD_PEER":              decodeAs[RemoveCloudPeer],
	"CLOUD_PEER_PING":                decodeAs[CloudPeerPing],
	"SHOW_SPINNER":                   decodeAs[ShowSpinner],
	"HIDE_SPINNER":                   decodeAs[HideSpinner],
	"SEND_NOTIFICATION":              decodeAs[SendNotification],
	"MERGE_PREVIEW_STARTED":          decodeAs[MergePreviewStarted],
	"MERGE_PREVIEW_ENDED":            decodeAs[MergePreviewEnded],
}

// DecodeAction builds an Action from its tagged JSON form, for example {"type":"DRAW_CELL","id":5}. Unrecognised
// types decode to Unknown without error; malformed payloads of known types are rejected here so the engine never
// sees them.
func DecodeAction(raw []byte) (Action, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode action: %w", err)
	}
	if envelope.Type == "" {
		return nil, errors.New("action has no type")
	}
	decode, ok := decoders[envelope.Type]
	if !ok {
		return Unknown{Type: envelope.Type}, nil
	}
	action, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", envelope.Type, err)
	}
	if err := validate(action); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envelope.Type, err)
	}
	return action, nil
}

func decodeAs[T Action](raw json.RawMessage) (Action, error) {
	var a T
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return a, nil
}

// decodeColorSelected maps a null or absent swatch to NoSwatch.
func decodeColorSelected(raw json.RawMessage) (Action, error) {
	var payload struct {
		SwatchIndex *int `json:"newColorSelected"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	a := SetColorSelected{SwatchIndex: state.NoSwatch}
	if payload.SwatchIndex != nil {
		a.SwatchIndex = *payload.SwatchIndex
	}
	return a, nil
}

func validate(action Action) error {
	switch a := action.(type) {
	case DrawCell:
		if a.PixelIndex < 0 {
			return fmt.Errorf("pixel index %d is negative", a.PixelIndex)
		}
	case PixelConflictClicked:
		if a.Index < 0 {
			return fmt.Errorf("pixel index %d is negative", a.Index)
		}
	case DeleteFrame:
		if a.FrameIndex < 0 {
			return fmt.Errorf("frame index %d is negative", a.FrameIndex)
		}
	case DuplicateFrame:
		if a.FrameIndex < 0 {
			return fmt.Errorf("frame index %d is negative", a.FrameIndex)
		}
	case ChangeFrameInterval:
		if a.Interval < 0 {
			return fmt.Errorf("interval %d is negative", a.Interval)
		}
	case SetDuration:
		if a.Duration <= 0 {
			return fmt.Errorf("duration %v must be positive", a.Duration)
		}
	case SetSwatchColor:
		if !colorPattern.MatchString(a.Color) {
			return fmt.Errorf("color %q is not of the form #rrggbb", a.Color)
		}
	case SetCellSize:
		if a.CellSize <= 0 {
			return fmt.Errorf("cell size %d must be positive", a.CellSize)
		}
	case ChangeDimensions:
		if a.Dimension != mutation.Columns && a.Dimension != mutation.Rows {
			return fmt.Errorf("unknown grid property %q", a.Dimension)
		}
		if a.Behavior != mutation.Add && a.Behavior != mutation.Remove {
			return fmt.Errorf("unknown behaviour %q", a.Behavior)
		}
	case PixelsImported:
		if a.Width <= 0 || a.Height <= 0 || len(a.Pixels) != a.Width*a.Height {
			return fmt.Errorf("%d pixels do not fill a %dx%d image", len(a.Pixels), a.Width, a.Height)
		}
	case DocumentReady, DocumentUpdated, DocumentForked, DocumentMerged, DocumentOpened, DocumentCreated, DocumentDeleted:
		if documentID(a) == "" {
			return errors.New("document id is empty")
		}
	}
	return nil
}

func documentID(action Action) string {
	switch a := action.(type) {
	case DocumentReady:
		return a.ID
	case DocumentUpdated:
		return a.ID
	case DocumentForked:
		return a.ID
	case DocumentMerged:
		return a.ID
	case DocumentOpened:
		return a.ID
	case DocumentCreated:
		return a.ID
	case DocumentDeleted:
		return a.ID
	}
	return ""
}
