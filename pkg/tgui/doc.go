// Package tgui builds Telegram HTML fragments for cards and replies.
package tgui
