package manager

import (
	"encoding/binary"
	"log"

	"github.com/sealfs-project/sealfs/pkg/cluster"
	"github.com/sealfs-project/sealfs/pkg/proto"
	"github.com/sealfs-project/sealfs/pkg/ring"
)

// Server answers the manager's RPC surface: pkg/proto's ManagerOp family
// (GetClusterStatus, GetHashRing, GetNewHashRing, AddNodes, RemoveNodes,
// UpdateServerStatus) plus the OpSendHeart supplement from SPEC_FULL.md
// §13. It implements rpcconn.Handler the same way pkg/router.Dispatcher
// does, on the manager's own listener rather than a storage server's.
//
// Manager ops have no path/file semantics, so requests reuse the
// Request.Path field to carry the calling node's own listen address
// (the identity the registry keys on) wherever one is needed, rather
// than introducing a second frame shape just for the manager.
type Server struct {
	mgr    *Manager
	logger *log.Logger
}

// NewServer returns a Server answering on behalf of mgr. logger may be
// nil.
func NewServer(mgr *Manager, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{mgr: mgr, logger: logger}
}

// Handle implements rpcconn.Handler.
func (s *Server) Handle(req *proto.Request) *proto.Response {
	if req.Op == proto.OpSendHeart {
		s.mgr.registry.Touch(string(req.Path))
		return &proto.Response{Status: proto.Success}
	}

	switch proto.ManagerOp(req.Op) {
	case proto.ManagerOpGetClusterStatus:
		return s.getClusterStatus()
	case proto.ManagerOpGetHashRing:
		return s.getRing(s.mgr.HashRing())
	case proto.ManagerOpGetNewHashRing:
		return s.getRing(s.mgr.NewHashRing())
	case proto.ManagerOpAddNodes:
		return s.addNodes(req)
	case proto.ManagerOpRemoveNodes:
		return s.removeNodes(req)
	case proto.ManagerOpUpdateServerStatus:
		return s.updateServerStatus(req)
	default:
		return &proto.Response{Status: proto.ENOSYS}
	}
}

func (s *Server) getClusterStatus() *proto.Response {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(s.mgr.Status()))
	return &proto.Response{Data: b}
}

func (s *Server) getRing(r *ring.HashRing) *proto.Response {
	if r == nil {
		return &proto.Response{Status: proto.Success}
	}
	servers := r.Servers()
	nodes := make([]proto.NodeSpec, 0, len(servers))
	for addr, weight := range servers {
		nodes = append(nodes, proto.NodeSpec{Address: addr, Weight: uint32(weight)})
	}
	return &proto.Response{Data: proto.MarshalNodeList(nodes)}
}

func (s *Server) addNodes(req *proto.Request) *proto.Response {
	nodes, err := proto.UnmarshalNodeList(req.Data)
	if err != nil {
		return &proto.Response{Status: proto.EINVAL}
	}
	deltas := make([]NodeDelta, len(nodes))
	for i, n := range nodes {
		deltas[i] = NodeDelta{Address: n.Address, Weight: int(n.Weight)}
	}
	if err := s.mgr.RequestRebalance(deltas, nil); err != nil {
		s.logger.Printf("manager: AddNodes rejected: %v", err)
		return &proto.Response{Status: proto.EBUSY}
	}
	for _, d := range deltas {
		s.logger.Printf("manager: registered %s as node %s", d.Address, s.mgr.Registry().ID(d.Address))
	}
	return &proto.Response{Status: proto.Success}
}

func (s *Server) removeNodes(req *proto.Request) *proto.Response {
	nodes, err := proto.UnmarshalNodeList(req.Data)
	if err != nil {
		return &proto.Response{Status: proto.EINVAL}
	}
	addrs := make([]string, len(nodes))
	for i, n := range nodes {
		addrs[i] = n.Address
	}
	if err := s.mgr.RequestRebalance(nil, addrs); err != nil {
		s.logger.Printf("manager: RemoveNodes rejected: %v", err)
		return &proto.Response{Status: proto.EBUSY}
	}
	return &proto.Response{Status: proto.Success}
}

func (s *Server) updateServerStatus(req *proto.Request) *proto.Response {
	if len(req.Meta) < 4 {
		return &proto.Response{Status: proto.EINVAL}
	}
	status := cluster.Status(binary.LittleEndian.Uint32(req.Meta[0:4]))
	if err := s.mgr.Ack(string(req.Path), status); err != nil {
		s.logger.Printf("manager: UpdateServerStatus(%s, %s) rejected: %v", req.Path, status, err)
		return &proto.Response{Status: proto.EINVAL}
	}
	return &proto.Response{Status: proto.Success}
}
