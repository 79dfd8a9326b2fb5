package router

import (
	"context"

	"github.com/sealfs-project/sealfs/pkg/proto"
	"github.com/sealfs-project/sealfs/pkg/rpcconn"
)

// The functions in this file are the rebalance engine's only RPC
// surface: typed calls to a specific peer, the wire counterpart of
// Dispatch's server-side handling of the same op codes. A Response's
// Data field carries a marshaled FileAttr for every op that returns one;
// ops with no return value besides success/failure carry nothing.

func call(ctx context.Context, conn *rpcconn.ClientConnection, op proto.Op, path string, meta []byte, data []byte) (*proto.Response, error) {
	req := &proto.Request{Op: op, Path: []byte(path), Meta: meta, Data: data}
	resp, err := conn.Call(ctx, req, 0)
	if err != nil {
		return nil, err
	}
	if resp.Status != proto.Success {
		return resp, resp.Status.Err()
	}
	return resp, nil
}

func remoteCreateDirNoParent(ctx context.Context, conn *rpcconn.ClientConnection, path string, mode uint32) (proto.FileAttr, error) {
	resp, err := call(ctx, conn, proto.OpCreateDirNoParent, path, proto.CreateDirMeta{Mode: mode}.Marshal(), nil)
	if err != nil {
		return proto.FileAttr{}, err
	}
	return proto.UnmarshalFileAttr(resp.Data)
}

func remoteCreateFileNoParent(ctx context.Context, conn *rpcconn.ClientConnection, path string, mode uint32) (proto.FileAttr, error) {
	resp, err := call(ctx, conn, proto.OpCreateFileNoParent, path, proto.CreateFileMeta{Mode: mode}.Marshal(), nil)
	if err != nil {
		return proto.FileAttr{}, err
	}
	return proto.UnmarshalFileAttr(resp.Data)
}

func remoteDirectoryAddEntry(ctx context.Context, conn *rpcconn.ClientConnection, parent, name string, kind proto.FileKind) error {
	meta := proto.DirectoryEntry{FileType: kind, FileName: name}.Marshal()
	_, err := call(ctx, conn, proto.OpDirectoryAddEntry, parent, meta, nil)
	return err
}

func remoteWriteFile(ctx context.Context, conn *rpcconn.ClientConnection, path string, offset uint64, data []byte) error {
	_, err := call(ctx, conn, proto.OpWriteFile, path, proto.WriteFileMeta{Offset: offset}.Marshal(), data)
	return err
}

func remoteCheckFile(ctx context.Context, conn *rpcconn.ClientConnection, path string, attr proto.FileAttr) error {
	_, err := call(ctx, conn, proto.OpCheckFile, path, proto.CheckMeta{Attr: attr}.Marshal(), nil)
	return err
}

func remoteCheckDir(ctx context.Context, conn *rpcconn.ClientConnection, path string, attr proto.FileAttr) error {
	_, err := call(ctx, conn, proto.OpCheckDir, path, proto.CheckMeta{Attr: attr}.Marshal(), nil)
	return err
}
