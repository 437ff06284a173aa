// Package home manages smart homes, rooms and doors on behalf of users.
//
// It owns the rules the entity store leaves to its callers:
//   - every smart home has exactly one default room, created and deleted with it
//   - the default room cannot be edited or deleted by users
//   - nothing is deleted while another entity refers to it
//   - a door's rooms belong to its smart home, and its sequence number is unique there
//   - user edits of door associations apply to the normal and override pair alike
//
// Changes that affect devices are followed by republishing the smart home's
// denial and power saving settings.
package home
