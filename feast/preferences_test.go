package feast

import (
	"context"
	"errors"
	"testing"

	"github.com/rushteam/bookrec/core"
)

type fakeClient struct {
	resp *GetOnlineFeaturesResponse
	err  error
}

func (f *fakeClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	return f.resp, f.err
}
func (f *fakeClient) Close() error { return nil }

func TestPreferenceStore_GetUserLanguages(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{name: "comma separated", value: "English, Spanish ,german", want: []string{"english", "spanish", "german"}},
		{name: "string list", value: []any{"English", "english", "FRENCH"}, want: []string{"english", "french"}},
		{name: "missing feature", value: nil, want: nil},
		{name: "unexpected type", value: 42.0, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{resp: &GetOnlineFeaturesResponse{
				FeatureVectors: []FeatureVector{{Values: map[string]any{DefaultLanguageFeature: tt.value}}},
			}}
			s := NewPreferenceStore(client)

			got, err := s.GetUserLanguages(context.Background(), "u1")
			if err != nil {
				t.Fatalf("GetUserLanguages: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestPreferenceStore_Unavailable(t *testing.T) {
	s := NewPreferenceStore(&fakeClient{err: errors.New("connection refused")})
	_, err := s.GetUserLanguages(context.Background(), "u1")
	if !core.IsUnavailable(err) {
		t.Fatalf("err = %v, want UNAVAILABLE domain error", err)
	}
	if !core.IsRecoverable(err) {
		t.Fatal("feast outage must be recoverable (history inference fallback)")
	}
}

func TestPreferenceStore_AnonymousUser(t *testing.T) {
	s := NewPreferenceStore(&fakeClient{})
	got, err := s.GetUserLanguages(context.Background(), "")
	if err != nil || got != nil {
		t.Fatalf("anonymous = %v, %v; want nil, nil", got, err)
	}
}
