package state

import (
	"maps"
	"time"
)

// NoSwatch is the CurrentSwatchIndex value meaning no fill color is selected.
const NoSwatch = -1

// State is a complete snapshot of the editor session. Values are never mutated in place: the reducer copies any map
// or slice it changes and returns a new State.
type State struct {
	CurrentProjectID string
	Projects         map[string]Project
	Peers            map[string]Peer
	CloudPeers       map[string]CloudPeer

	// CurrentSwatchIndex is a palette index or NoSwatch.
	CurrentSwatchIndex int
	EraserOn           bool
	EyedropperOn       bool
	ColorPickerOn      bool
	BucketOn           bool

	ActiveFrameIndex int
	Duration         float64

	Loading             bool
	IsLoaded            bool
	CreatedProjectCount int
	ClonedProjectID     string
	OpeningProjectID    string

	// Notifications holds zero or one pending message.
	Notifications []Notification

	MergePreviewProjectID string

	PeerInfo    PeerInfo
	ArchiverKey string
}

// Project is one collaboratively edited document as seen by this session.
type Project struct {
	ID         string
	Doc        Content
	IsWritable bool
	IsOpening  bool
}

type Peer struct {
	Key         string
	ID          string
	IsConnected bool
	IsSelf      bool
	CanEdit     bool
	Info        PeerInfo
}

type PeerInfo struct {
	Name      string `json:"name"`
	AvatarKey string `json:"avatarKey"`
}

// CloudPeer is a presence-only peer such as a relay node.
type CloudPeer struct {
	Name      string
	Timestamp time.Time
}

type Notification struct {
	ID      int
	Message string
}

// New returns the state of a fresh session.
func New() State {
	return State{
		Projects:           map[string]Project{},
		Peers:              map[string]Peer{},
		CloudPeers:         map[string]CloudPeer{},
		CurrentSwatchIndex: 0,
		Duration:           1,
	}
}

// CurrentProject returns the project being edited, if it is present in Projects.
func (s State) CurrentProject() (Project, bool) {
	if s.CurrentProjectID == "" {
		return Project{}, false
	}
	p, ok := s.Projects[s.CurrentProjectID]
	return p, ok
}

// FrameCount is the number of frames in the current project, or 0 when there is none.
func (s State) FrameCount() int {
	p, ok := s.CurrentProject()
	if !ok {
		return 0
	}
	return len(p.Doc.Frames)
}

// WithProject returns a copy of s with p stored under its own id.
func (s State) WithProject(p Project) State {
	projects := maps.Clone(s.Projects)
	if projects == nil {
		projects = map[string]Project{}
	}
	projects[p.ID] = p
	s.Projects = projects
	return s
}

// WithoutProject returns a copy of s with the project removed.
func (s State) WithoutProject(id string) State {
	if _, ok := s.Projects[id]; !ok {
		return s
	}
	projects := maps.Clone(s.Projects)
	delete(projects, id)
	s.Projects = projects
	return s
}

func (s State) WithPeer(p Peer) State {
	peers := maps.Clone(s.Peers)
	if peers == nil {
		peers = map[string]Peer{}
	}
	peers[p.ID] = p
	s.Peers = peers
	return s
}

func (s State) WithoutPeer(id string) State {
	if _, ok := s.Peers[id]; !ok {
		return s
	}
	peers := maps.Clone(s.Peers)
	delete(peers, id)
	s.Peers = peers
	return s
}

func (s State) WithCloudPeer(key string, p CloudPeer) State {
	peers := maps.Clone(s.CloudPeers)
	if peers == nil {
		peers = map[string]CloudPeer{}
	}
	peers[key] = p
	s.CloudPeers = peers
	return s
}

func (s State) WithoutCloudPeer(key string) State {
	if _, ok := s.CloudPeers[key]; !ok {
		return s
	}
	peers := maps.Clone(s.CloudPeers)
	delete(peers, key)
	s.CloudPeers = peers
	return s
}
