// Package hcloud implements the hcloud provider on top of the Hetzner Cloud
// API client. Instance IDs are the numeric hcloud IDs, except for subnets
// which have no ID of their own and use "<network id>-<ip range>".
package hcloud
