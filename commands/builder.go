package commands

import (
	"guardbot/model"

	"github.com/bwmarrin/discordgo"
)

// GenerateCommands returns the slash commands to register for every guild.
func GenerateCommands() []*discordgo.ApplicationCommand {
	cmds := make([]*discordgo.ApplicationCommand, 0, len(Catalogue))
	for _, s := range Catalogue {
		cmds = append(cmds, s.Definition)
	}
	return cmds
}

// FromInteraction turns slash command data into a Command. User options
// become the target, string options become arguments in declaration order and
// true boolean options become --flags.
func FromInteraction(data discordgo.ApplicationCommandInteractionData) (*model.Command, bool) {
	entry, ok := Lookup(data.Name)
	if !ok {
		return nil, false
	}
	cmd := &model.Command{Name: entry.Name()}
	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionUser:
			id, _ := opt.Value.(string)
			if id == "" {
				continue
			}
			ref := model.UserRef{ID: id}
			if data.Resolved != nil {
				if u, ok := data.Resolved.Users[id]; ok {
					ref = UserRef(u)
				}
				if m, ok := data.Resolved.Members[id]; ok && m.Nick != "" {
					ref.FirstName = m.Nick
				}
			}
			if cmd.Target == nil {
				cmd.Target = &ref
			}
		case discordgo.ApplicationCommandOptionString:
			cmd.Args = append(cmd.Args, opt.StringValue())
		case discordgo.ApplicationCommandOptionBoolean:
			if opt.BoolValue() {
				cmd.Args = append(cmd.Args, "--"+opt.Name)
			}
		}
	}
	return cmd, true
}

// UserRef converts a Discord user. The global display name takes the place of
// a first name.
func UserRef(u *discordgo.User) model.UserRef {
	if u == nil {
		return model.UserRef{}
	}
	return model.UserRef{ID: u.ID, Username: u.Username, FirstName: u.GlobalName}
}
