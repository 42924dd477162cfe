package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

func TestBuildLoader_UsesConfiguredExtensions(t *testing.T) {
	cfg := &config.AppConfig{KnowledgeBase: config.KnowledgeBaseConfig{Extensions: []string{".txt"}}}
	l, err := buildLoader(cfg, logger.Nop())
	require.NoError(t, err)
	assert.True(t, l.Supports("kb/notes.txt"))
	assert.False(t, l.Supports("kb/handbook.pdf"))

	cfg.KnowledgeBase.Extensions = []string{".pdf"}
	l, err = buildLoader(cfg, logger.Nop())
	require.NoError(t, err)
	assert.True(t, l.Supports("kb/handbook.pdf"))
	assert.False(t, l.Supports("kb/notes.txt"))
}

func TestBuildLoader_UnknownExtension(t *testing.T) {
	cfg := &config.AppConfig{KnowledgeBase: config.KnowledgeBaseConfig{Extensions: []string{".docx"}}}
	_, err := buildLoader(cfg, logger.Nop())
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}
