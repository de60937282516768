package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/crestline-hoa/invoice-cli/internal/model"
)

func TestLoadContext_BothLoads(t *testing.T) {
	st := new(mockStore)
	st.On("ListGLAccounts", mock.Anything, "assoc-1").Return([]model.GLAccount{
		{Code: "6300", Name: "Landscaping"},
	}, nil)
	st.On("ListVendorPatterns", mock.Anything, "assoc-1").Return([]model.VendorPattern{
		{VendorName: "Acme Landscaping", GLAccount: "6300"},
	}, nil)
	p := newTestPipeline(st, new(mockAnthropicClient))

	actx := p.loadContext(context.Background(), "assoc-1")

	assert.Len(t, actx.GLAccounts, 1)
	assert.Len(t, actx.VendorPatterns, 1)
	st.AssertExpectations(t)
}

func TestLoadContext_GLFailureAbsorbed(t *testing.T) {
	st := new(mockStore)
	st.On("ListGLAccounts", mock.Anything, "assoc-1").Return(nil, eris.New("db down"))
	st.On("ListVendorPatterns", mock.Anything, "assoc-1").Return([]model.VendorPattern{
		{VendorName: "Acme Landscaping"},
	}, nil)
	p := newTestPipeline(st, new(mockAnthropicClient))

	actx := p.loadContext(context.Background(), "assoc-1")

	assert.Empty(t, actx.GLAccounts)
	assert.Len(t, actx.VendorPatterns, 1)
}

func TestLoadContext_TotalFailureYieldsEmptyContext(t *testing.T) {
	st := new(mockStore)
	st.On("ListGLAccounts", mock.Anything, "assoc-1").Return(nil, eris.New("db down"))
	st.On("ListVendorPatterns", mock.Anything, "assoc-1").Return(nil, eris.New("db down"))
	p := newTestPipeline(st, new(mockAnthropicClient))

	actx := p.loadContext(context.Background(), "assoc-1")

	assert.Empty(t, actx.GLAccounts)
	assert.Empty(t, actx.VendorPatterns)
}
