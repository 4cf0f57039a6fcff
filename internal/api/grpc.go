package api

import (
	"context"

	"github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/victornm/gamerank/internal/errors"
)

// CodecName is the content-subtype of the JSON gRPC codec.
const CodecName = "json"

const rankingServiceName = "gamerank.v1.RankingService"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

// RankingServiceServer is the gRPC surface of the API.
type RankingServiceServer interface {
	SubmitScore(ctx context.Context, req *SubmitScoreRequest) (*SubmitScoreResponse, error)
	GetRank(ctx context.Context, req *GetRankRequest) (*GetRankResponse, error)
	Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResponse, error)
}

var rankingServiceDesc = grpc.ServiceDesc{
	ServiceName: rankingServiceName,
	HandlerType: (*RankingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitScore", Handler: unaryHandler("SubmitScore", RankingServiceServer.SubmitScore)},
		{MethodName: "GetRank", Handler: unaryHandler("GetRank", RankingServiceServer.GetRank)},
		{MethodName: "Recommend", Handler: unaryHandler("Recommend", RankingServiceServer.Recommend)},
	},
	Streams: []grpc.StreamDesc{},
}

func unaryHandler[Req, Resp any](
	method string,
	call func(RankingServiceServer, context.Context, *Req) (*Resp, error),
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RankingServiceServer), ctx, req.(*Req))
		}
		if interceptor == nil {
			return handler(ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + rankingServiceName + "/" + method,
		}
		return interceptor(ctx, in, info, handler)
	}
}

func (a *API) SubmitScore(ctx context.Context, req *SubmitScoreRequest) (*SubmitScoreResponse, error) {
	resp, err := a.submitScore(ctx, *req)
	if err != nil {
		return nil, errors.Convert(err)
	}
	return resp, nil
}

func (a *API) GetRank(ctx context.Context, req *GetRankRequest) (*GetRankResponse, error) {
	resp, err := a.getRank(ctx, *req)
	if err != nil {
		return nil, errors.Convert(err)
	}
	return resp, nil
}

func (a *API) Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResponse, error) {
	resp, err := a.recommend(ctx, *req)
	if err != nil {
		return nil, errors.Convert(err)
	}
	return resp, nil
}

// RankingClient calls RankingService with the JSON codec.
type RankingClient struct {
	cc grpc.ClientConnInterface
}

func NewRankingClient(cc grpc.ClientConnInterface) *RankingClient {
	return &RankingClient{cc: cc}
}

func (c *RankingClient) SubmitScore(ctx context.Context, req *SubmitScoreRequest, opts ...grpc.CallOption) (*SubmitScoreResponse, error) {
	out := new(SubmitScoreResponse)
	if err := c.invoke(ctx, "SubmitScore", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RankingClient) GetRank(ctx context.Context, req *GetRankRequest, opts ...grpc.CallOption) (*GetRankResponse, error) {
	out := new(GetRankResponse)
	if err := c.invoke(ctx, "GetRank", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RankingClient) Recommend(ctx context.Context, req *RecommendRequest, opts ...grpc.CallOption) (*RecommendResponse, error) {
	out := new(RecommendResponse)
	if err := c.invoke(ctx, "Recommend", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RankingClient) invoke(ctx context.Context, method string, req, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+rankingServiceName+"/"+method, req, out, opts...)
}
