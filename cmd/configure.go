package cmd

import (
	"fmt"
	"os"

	"emperror.dev/errors"
	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"

	"github.com/pterodactyl/scribe/config"
)

var configureArgs struct {
	Token    string
	Root     string
	Override bool
}

func newConfigureCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "configure",
		Short: "Write a configuration file with a token and root directory",
		Run:   configureCmdRun,
	}
	command.Flags().StringVarP(&configureArgs.Token, "token", "t", "", "the token callers must present")
	command.Flags().StringVarP(&configureArgs.Root, "root", "r", "", "the directory all writes are confined to")
	command.Flags().BoolVar(&configureArgs.Override, "override", false, "override an existing configuration")
	return command
}

func configureCmdRun(cmd *cobra.Command, args []string) {
	if _, err := os.Stat(configPath); err == nil && !configureArgs.Override {
		if err := survey.AskOne(&survey.Confirm{Message: "Override existing configuration file"}, &configureArgs.Override); err != nil {
			if err == terminal.InterruptErr {
				return
			}
			panic(err)
		}
		if !configureArgs.Override {
			fmt.Println("Aborted.")
			os.Exit(1)
		}
	}

	var questions []*survey.Question
	if configureArgs.Token == "" {
		questions = append(questions, &survey.Question{
			Name:     "Token",
			Prompt:   &survey.Password{Message: "Token: "},
			Validate: validateToken,
		})
	}
	if configureArgs.Root == "" {
		wd, _ := os.Getwd()
		questions = append(questions, &survey.Question{
			Name:     "Root",
			Prompt:   &survey.Input{Message: "Root directory: ", Default: wd},
			Validate: survey.Required,
		})
	}
	if err := survey.Ask(questions, &configureArgs); err != nil {
		if err == terminal.InterruptErr {
			return
		}
		panic(err)
	}
	if err := validateToken(configureArgs.Token); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	c, err := config.NewAtPath(configPath)
	if err != nil {
		panic(err)
	}
	c.AuthenticationToken = configureArgs.Token
	c.System.RootDirectory = configureArgs.Root
	if err := c.System.ConfigureRootDirectory(); err != nil {
		panic(err)
	}
	if err := config.WriteToDisk(c); err != nil {
		panic(err)
	}

	fmt.Printf("Successfully configured scribe at %s.\n", configPath)
}

func validateToken(ans interface{}) error {
	if str, ok := ans.(string); ok {
		if str == "" || str == config.DefaultToken {
			return errors.New("the token cannot be empty or the default value")
		}
	}
	return nil
}
