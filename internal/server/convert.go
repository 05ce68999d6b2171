package server

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStructPB goes through JSON so struct values honour their json tags.
func toStructPB(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var mm map[string]any
	if err := json.Unmarshal(b, &mm); err != nil {
		return nil, err
	}
	return structpb.NewStruct(mm)
}

// decode reads a request struct into dst through its JSON form.
func decode(st *structpb.Struct, dst any) error {
	if st == nil {
		return nil
	}
	b, err := json.Marshal(st.AsMap())
	if err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid request: %w", err))
	}
	return nil
}

func respond(v any) (*connect.Response[structpb.Struct], error) {
	st, err := toStructPB(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(st), nil
}
